package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mcdev12/scatter/go/internal/apperrors"
)

// ServiceName is the Connect service path segment.
const ServiceName = "scatter.game.v1.GameService"

// Service exposes App over Connect unary procedures. Requests and responses are
// google.protobuf.Struct messages, so any Connect, gRPC or gRPC-Web client can
// call it without generated stubs.
type Service struct {
	app *App
}

// NewService creates a new game Connect service.
func NewService(app *App) *Service {
	return &Service{app: app}
}

type pinRequest struct {
	Pin int `json:"pin"`
}

type roundRequest struct {
	Pin         int `json:"pin"`
	RoundNumber int `json:"round_number"`
}

type answerRequest struct {
	Pin         int    `json:"pin"`
	RoundNumber int    `json:"round_number"`
	Category    string `json:"category"`
	Text        string `json:"text"`
}

type voteRequest struct {
	Pin      int    `json:"pin"`
	AnswerID string `json:"answer_id"`
	Valid    bool   `json:"valid"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

// Handler returns the path prefix and handler serving every procedure.
func (s *Service) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	route := func(name string, h func(ctx context.Context, token string, msg *structpb.Struct) (any, error)) {
		procedure := "/" + ServiceName + "/" + name
		mux.Handle(procedure, connect.NewUnaryHandler(procedure, func(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
			out, err := h(ctx, bearerToken(req.Header()), req.Msg)
			if err != nil {
				return nil, toConnectError(procedure, err)
			}
			msg, err := toStruct(out)
			if err != nil {
				return nil, connect.NewError(connect.CodeInternal, err)
			}
			return connect.NewResponse(msg), nil
		}, opts...))
	}

	route("RegisterPlayer", func(ctx context.Context, _ string, msg *structpb.Struct) (any, error) {
		req, err := decode[RegisterPlayerRequest](msg)
		if err != nil {
			return nil, err
		}
		return s.app.RegisterPlayer(ctx, req)
	})
	route("CreateSession", func(ctx context.Context, token string, msg *structpb.Struct) (any, error) {
		req, err := decode[CreateSessionRequest](msg)
		if err != nil {
			return nil, err
		}
		return s.app.CreateSession(ctx, token, req)
	})
	route("JoinSession", withPin(func(ctx context.Context, token string, req pinRequest) (any, error) {
		return okResponse{true}, s.app.JoinSession(ctx, req.Pin, token)
	}))
	route("LeaveSession", withPin(func(ctx context.Context, token string, req pinRequest) (any, error) {
		return okResponse{true}, s.app.LeaveSession(ctx, req.Pin, token)
	}))
	route("StartSession", withPin(func(ctx context.Context, _ string, req pinRequest) (any, error) {
		return okResponse{true}, s.app.StartSession(ctx, req.Pin)
	}))
	route("StartRound", func(ctx context.Context, _ string, msg *structpb.Struct) (any, error) {
		req, err := decode[roundRequest](msg)
		if err != nil {
			return nil, err
		}
		return okResponse{true}, s.app.StartRound(ctx, req.Pin, req.RoundNumber)
	})
	route("StopRound", func(ctx context.Context, token string, msg *structpb.Struct) (any, error) {
		req, err := decode[roundRequest](msg)
		if err != nil {
			return nil, err
		}
		return okResponse{true}, s.app.StopRound(ctx, req.Pin, token, req.RoundNumber)
	})
	route("RequestSkip", withPin(func(ctx context.Context, token string, req pinRequest) (any, error) {
		return okResponse{true}, s.app.RequestSkip(ctx, req.Pin, token)
	}))
	route("SubmitAnswer", func(ctx context.Context, token string, msg *structpb.Struct) (any, error) {
		req, err := decode[answerRequest](msg)
		if err != nil {
			return nil, err
		}
		return s.app.SubmitAnswer(ctx, req.Pin, token, req.RoundNumber, req.Category, req.Text)
	})
	route("SubmitVote", func(ctx context.Context, token string, msg *structpb.Struct) (any, error) {
		req, err := decode[voteRequest](msg)
		if err != nil {
			return nil, err
		}
		answerID, err := uuid.Parse(req.AnswerID)
		if err != nil {
			return nil, apperrors.NewValidation("answer_id", "must be a UUID")
		}
		return okResponse{true}, s.app.SubmitVote(ctx, req.Pin, token, answerID, req.Valid)
	})
	route("GetSession", withPin(func(ctx context.Context, _ string, req pinRequest) (any, error) {
		return s.app.GetSession(ctx, req.Pin)
	}))
	route("GetCategories", withPin(func(ctx context.Context, _ string, req pinRequest) (any, error) {
		categories, err := s.app.GetCategories(ctx, req.Pin)
		return map[string]any{"categories": categories}, err
	}))
	route("GetDefaultCategories", func(context.Context, string, *structpb.Struct) (any, error) {
		return map[string]any{"categories": s.app.DefaultCategories()}, nil
	})
	route("GetMembers", withPin(func(ctx context.Context, _ string, req pinRequest) (any, error) {
		return s.app.GetMembers(ctx, req.Pin)
	}))
	route("GetAnswers", func(ctx context.Context, _ string, msg *structpb.Struct) (any, error) {
		req, err := decode[roundRequest](msg)
		if err != nil {
			return nil, err
		}
		answers, err := s.app.GetAnswers(ctx, req.Pin, req.RoundNumber)
		return map[string]any{"answers": answers}, err
	})
	route("GetScoreboard", withPin(func(ctx context.Context, _ string, req pinRequest) (any, error) {
		board, err := s.app.GetScoreboard(ctx, req.Pin)
		return map[string]any{"standings": board}, err
	}))
	route("GetWinners", withPin(func(ctx context.Context, _ string, req pinRequest) (any, error) {
		winners, err := s.app.GetWinners(ctx, req.Pin)
		return map[string]any{"winners": winners}, err
	}))
	route("GetLeaderboard", func(ctx context.Context, _ string, _ *structpb.Struct) (any, error) {
		board, err := s.app.GetLeaderboard(ctx)
		return map[string]any{"standings": board}, err
	})

	return "/" + ServiceName + "/", mux
}

func withPin(fn func(ctx context.Context, token string, req pinRequest) (any, error)) func(context.Context, string, *structpb.Struct) (any, error) {
	return func(ctx context.Context, token string, msg *structpb.Struct) (any, error) {
		req, err := decode[pinRequest](msg)
		if err != nil {
			return nil, err
		}
		return fn(ctx, token, req)
	}
}

func bearerToken(h http.Header) string {
	return strings.TrimSpace(strings.TrimPrefix(h.Get("Authorization"), "Bearer "))
}

// decode converts a Struct message into T through its JSON form.
func decode[T any](msg *structpb.Struct) (T, error) {
	var out T
	if msg == nil {
		return out, nil
	}
	data, err := protojson.Marshal(msg)
	if err != nil {
		return out, apperrors.NewValidation("", "malformed request: %v", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, apperrors.NewValidation("", "malformed request: %v", err)
	}
	return out, nil
}

// toStruct converts any JSON-serializable value into a Struct message.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	msg := &structpb.Struct{}
	if err := protojson.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("failed to convert response: %w", err)
	}
	return msg, nil
}

// toConnectError maps domain error kinds onto Connect codes.
func toConnectError(procedure string, err error) error {
	var connectErr *connect.Error
	switch {
	case errors.As(err, &connectErr):
		return connectErr
	case apperrors.IsNotFound(err):
		return connect.NewError(connect.CodeNotFound, err)
	case apperrors.IsConflict(err):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case apperrors.IsValidation(err):
		return connect.NewError(connect.CodeInvalidArgument, err)
	default:
		log.Error().Err(err).Str("procedure", procedure).Msg("internal error")
		return connect.NewError(connect.CodeInternal, err)
	}
}
