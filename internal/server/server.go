package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"enfora/internal/service"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
)

const (
	AnalyticsServicePath   = "/enfora.v1.AnalyticsService/"
	LeaderboardServicePath = "/enfora.v1.LeaderboardService/"

	GetUserAnalyticsProcedure     = AnalyticsServicePath + "GetUserAnalytics"
	RefreshUserAnalyticsProcedure = AnalyticsServicePath + "RefreshUserAnalytics"
	DeleteUserAnalyticsProcedure  = AnalyticsServicePath + "DeleteUserAnalytics"
	GetTop100Procedure            = LeaderboardServicePath + "GetTop100"
	GetUserRankProcedure          = LeaderboardServicePath + "GetUserRank"
	GetMyRankProcedure            = LeaderboardServicePath + "GetMyRank"
)

// UserIDHeader is set by the gateway after authenticating the caller.
const UserIDHeader = "X-User-ID"

type EnforaServer struct {
	analyticsSvc   *service.AnalyticsService
	leaderboardSvc *service.LeaderboardService
}

func NewEnforaServer(analyticsSvc *service.AnalyticsService, leaderboardSvc *service.LeaderboardService) *EnforaServer {
	return &EnforaServer{analyticsSvc: analyticsSvc, leaderboardSvc: leaderboardSvc}
}

// Register mounts every procedure on mux.
func (s *EnforaServer) Register(mux *http.ServeMux) {
	opts := []connect.HandlerOption{CodecOption()}

	mux.Handle(GetUserAnalyticsProcedure, connect.NewUnaryHandler(GetUserAnalyticsProcedure, s.GetUserAnalytics, opts...))
	mux.Handle(RefreshUserAnalyticsProcedure, connect.NewUnaryHandler(RefreshUserAnalyticsProcedure, s.RefreshUserAnalytics, opts...))
	mux.Handle(DeleteUserAnalyticsProcedure, connect.NewUnaryHandler(DeleteUserAnalyticsProcedure, s.DeleteUserAnalytics, opts...))
	mux.Handle(GetTop100Procedure, connect.NewUnaryHandler(GetTop100Procedure, s.GetTop100, opts...))
	mux.Handle(GetUserRankProcedure, connect.NewUnaryHandler(GetUserRankProcedure, s.GetUserRank, opts...))
	mux.Handle(GetMyRankProcedure, connect.NewUnaryHandler(GetMyRankProcedure, s.GetMyRank, opts...))
}

func (s *EnforaServer) GetUserAnalytics(ctx context.Context, req *connect.Request[UserRequest]) (*connect.Response[AnalyticsResponse], error) {
	defer logDuration(ctx, "GetUserAnalytics", time.Now())

	snapshot, err := s.analyticsSvc.GetUserAnalytics(ctx, req.Msg.UserID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&AnalyticsResponse{Analytics: snapshot}), nil
}

func (s *EnforaServer) RefreshUserAnalytics(ctx context.Context, req *connect.Request[UserRequest]) (*connect.Response[AnalyticsResponse], error) {
	defer logDuration(ctx, "RefreshUserAnalytics", time.Now())

	snapshot, err := s.analyticsSvc.RefreshUserAnalytics(ctx, req.Msg.UserID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&AnalyticsResponse{Analytics: snapshot}), nil
}

func (s *EnforaServer) DeleteUserAnalytics(ctx context.Context, req *connect.Request[UserRequest]) (*connect.Response[DeleteAnalyticsResponse], error) {
	if err := s.analyticsSvc.DeleteUserAnalytics(ctx, req.Msg.UserID); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&DeleteAnalyticsResponse{UserID: req.Msg.UserID, Deleted: true}), nil
}

func (s *EnforaServer) GetTop100(ctx context.Context, _ *connect.Request[Top100Request]) (*connect.Response[Top100Response], error) {
	defer logDuration(ctx, "GetTop100", time.Now())

	top, err := s.leaderboardSvc.GetTop100(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&Top100Response{
		Rankings:    top.Rankings,
		LastUpdated: top.LastUpdated,
		TotalUsers:  top.TotalUsers,
	}), nil
}

func (s *EnforaServer) GetUserRank(ctx context.Context, req *connect.Request[UserRequest]) (*connect.Response[RankResponse], error) {
	defer logDuration(ctx, "GetUserRank", time.Now())
	return s.rank(ctx, req.Msg.UserID)
}

func (s *EnforaServer) GetMyRank(ctx context.Context, req *connect.Request[MyRankRequest]) (*connect.Response[RankResponse], error) {
	defer logDuration(ctx, "GetMyRank", time.Now())

	userID := req.Header().Get(UserIDHeader)
	if userID == "" {
		return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("missing caller identity"))
	}
	return s.rank(ctx, userID)
}

func (s *EnforaServer) rank(ctx context.Context, userID string) (*connect.Response[RankResponse], error) {
	rank, err := s.leaderboardSvc.GetUserRank(ctx, userID)
	if err != nil {
		return nil, toConnectError(err)
	}
	if rank == nil {
		return connect.NewResponse(&RankResponse{Ranked: false, Message: noRankingMessage}), nil
	}
	return connect.NewResponse(&RankResponse{Ranked: true, Rank: rank}), nil
}

func toConnectError(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidUserID):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, service.ErrRefreshInProgress), errors.Is(err, service.ErrScanRunaway):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

func logDuration(ctx context.Context, procedure string, start time.Time) {
	zerolog.Ctx(ctx).Debug().
		Str("procedure", procedure).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("rpc handled")
}
