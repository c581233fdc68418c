package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"log/slog"

	"patchwatch/internal/api"
	"patchwatch/internal/catalog"
	"patchwatch/internal/daemon"
	"patchwatch/internal/logging"
	"patchwatch/internal/relation"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logging.NewComponentLogger(logger, "ipc"), ctx: ctx}
	if err := rpcServer.RegisterName("Patchwatch", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status()
	resp.Running = status.Running
	resp.PID = status.PID
	resp.ScheduledAccounts = status.Scheduler.ScheduledAccounts
	resp.CatalogPath = status.CatalogPath
	resp.LockPath = status.LockFilePath
	resp.NextChecks = make([]ScheduleEntry, 0, len(status.Scheduler.NextChecks))
	for _, entry := range status.Scheduler.NextChecks {
		resp.NextChecks = append(resp.NextChecks, ScheduleEntry{
			AccountID: entry.AccountID,
			NextCheck: entry.NextCheck,
			LastCheck: entry.LastCheck,
			Cadence:   entry.Cadence.String(),
		})
	}
	return nil
}

func (s *service) CheckNow(req CheckNowRequest, resp *CheckNowResponse) error {
	s.logger.Debug("manual check requested", logging.String(logging.FieldAccount, req.AccountID))
	summary, err := s.daemon.CheckNow(s.ctx, req.AccountID)
	if err != nil {
		return err
	}
	resp.Checked = summary.Checked
	resp.UpdatesFound = summary.UpdatesFound
	resp.SequelsFound = summary.SequelsFound
	resp.Failed = summary.Failed
	return nil
}

func (s *service) RefreshSchedule(req RefreshScheduleRequest, resp *RefreshScheduleResponse) error {
	if err := s.daemon.RefreshSchedule(s.ctx, req.AccountID); err != nil {
		return err
	}
	resp.Refreshed = true
	return nil
}

func (s *service) Approve(req ApproveRequest, resp *ApproveResponse) error {
	record, err := s.daemon.Approve(s.ctx, req.ReleaseID, req.PendingID)
	if err != nil {
		return err
	}
	resp.Record = api.FromUpdateRecord(record)
	s.logger.Info("pending update approved via IPC",
		logging.Int64(logging.FieldReleaseID, req.ReleaseID),
		logging.String("pending_id", req.PendingID))
	return nil
}

func (s *service) Reject(req RejectRequest, resp *RejectResponse) error {
	if err := s.daemon.Reject(s.ctx, req.ReleaseID, req.PendingID); err != nil {
		return err
	}
	resp.Rejected = true
	s.logger.Info("pending update rejected via IPC",
		logging.Int64(logging.FieldReleaseID, req.ReleaseID),
		logging.String("pending_id", req.PendingID))
	return nil
}

func (s *service) ResolveRelation(req ResolveRelationRequest, resp *ResolveRelationResponse) error {
	action, ok := relation.ParseAction(req.Action)
	if !ok {
		return fmt.Errorf("unknown relation action %q", req.Action)
	}
	if err := s.daemon.ResolveRelation(s.ctx, req.CandidateID, action); err != nil {
		return err
	}
	resp.Resolved = true
	return nil
}

func (s *service) ReleaseList(req ReleaseListRequest, resp *ReleaseListResponse) error {
	releases, err := s.daemon.ListReleases(s.ctx, req.AccountID, req.ActiveOnly)
	if err != nil {
		return err
	}
	resp.Releases = make([]Release, 0, len(releases))
	for _, release := range releases {
		resp.Releases = append(resp.Releases, api.FromRelease(release))
	}
	return nil
}

func (s *service) ReleaseAdd(req ReleaseAddRequest, resp *ReleaseAddResponse) error {
	created, err := s.daemon.AddRelease(s.ctx, releaseFromAddRequest(req))
	if err != nil {
		return err
	}
	resp.Release = api.FromRelease(created)
	s.logger.Info("release added via IPC",
		logging.Int64(logging.FieldReleaseID, created.ID),
		logging.String("title", created.Title))
	return nil
}

func releaseFromAddRequest(req ReleaseAddRequest) *catalog.TrackedRelease {
	return &catalog.TrackedRelease{
		AccountID:      req.AccountID,
		Title:          req.Title,
		SourceTag:      req.SourceTag,
		Link:           req.Link,
		CadenceMinutes: req.CadenceMinutes,
	}
}

func (s *service) ReleaseRemove(req ReleaseRemoveRequest, resp *ReleaseRemoveResponse) error {
	if err := s.daemon.RemoveRelease(s.ctx, req.ReleaseID); err != nil {
		return err
	}
	resp.Removed = true
	return nil
}

func (s *service) ReleasePause(req ReleasePauseRequest, resp *ReleasePauseResponse) error {
	if err := s.daemon.SetReleaseActive(s.ctx, req.ReleaseID, req.Active); err != nil {
		return err
	}
	resp.Active = req.Active
	return nil
}

func (s *service) PendingList(req PendingListRequest, resp *PendingListResponse) error {
	entries, err := s.daemon.ListPending(s.ctx, req.ReleaseID)
	if err != nil {
		return err
	}
	resp.Pending = make([]PendingUpdate, 0, len(entries))
	for _, entry := range entries {
		resp.Pending = append(resp.Pending, api.FromPendingUpdate(entry))
	}
	return nil
}

func (s *service) RelationList(req RelationListRequest, resp *RelationListResponse) error {
	candidates, err := s.daemon.ListRelations(s.ctx, req.ReleaseID)
	if err != nil {
		return err
	}
	resp.Candidates = make([]RelationCandidate, 0, len(candidates))
	for _, candidate := range candidates {
		resp.Candidates = append(resp.Candidates, api.FromRelationCandidate(candidate))
	}
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	records, err := s.daemon.ListHistory(s.ctx, req.ReleaseID)
	if err != nil {
		return err
	}
	resp.Records = make([]UpdateRecord, 0, len(records))
	for _, record := range records {
		resp.Records = append(resp.Records, api.FromUpdateRecord(record))
	}
	return nil
}

func (s *service) Health(_ HealthRequest, resp *HealthResponse) error {
	health := s.daemon.CatalogHealth(s.ctx)
	resp.DBPath = health.DBPath
	resp.SchemaVersion = health.SchemaVersion
	resp.IntegrityCheck = health.IntegrityCheck
	resp.Releases = health.Releases
	resp.ActiveReleases = health.ActiveReleases
	resp.UpdateRecords = health.UpdateRecords
	resp.PendingOpen = health.PendingOpen
	resp.PendingDismissed = health.PendingDismissed
	resp.RelationsOpen = health.RelationsOpen
	resp.Error = health.Error
	return nil
}
