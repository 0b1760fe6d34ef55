package game

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mcdev12/scatter/go/internal/apperrors"
	"github.com/mcdev12/scatter/go/internal/repository"
)

type testClient struct {
	t      *testing.T
	server *httptest.Server
}

func newTestClient(t *testing.T) *testClient {
	t.Helper()
	mem := repository.NewMemory()
	f := newFixture(t, mem, mem)

	mux := http.NewServeMux()
	path, handler := NewService(f.app).Handler()
	mux.Handle(path, handler)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return &testClient{t: t, server: server}
}

func (c *testClient) call(procedure, token string, body map[string]any) (*structpb.Struct, error) {
	c.t.Helper()
	client := connect.NewClient[structpb.Struct, structpb.Struct](
		c.server.Client(),
		c.server.URL+"/"+ServiceName+"/"+procedure,
	)
	msg, err := structpb.NewStruct(body)
	require.NoError(c.t, err)

	req := connect.NewRequest(msg)
	if token != "" {
		req.Header().Set("Authorization", "Bearer "+token)
	}
	res, err := client.CallUnary(context.Background(), req)
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c *testClient) mustCall(procedure, token string, body map[string]any) *structpb.Struct {
	c.t.Helper()
	res, err := c.call(procedure, token, body)
	require.NoError(c.t, err, procedure)
	return res
}

func (c *testClient) register(name string) string {
	c.t.Helper()
	res := c.mustCall("RegisterPlayer", "", map[string]any{"username": name, "quote": "hi"})
	return res.GetFields()["token"].GetStringValue()
}

func TestServiceSessionFlow(t *testing.T) {
	c := newTestClient(t)
	ana := c.register("ana")
	bo := c.register("bo")
	require.NotEmpty(t, ana)

	created := c.mustCall("CreateSession", ana, map[string]any{
		"round_count":  2,
		"round_length": "SHORT",
		"categories":   []any{"City", "Animal"},
	})
	pin := int(created.GetFields()["pin"].GetNumberValue())
	require.NotZero(t, pin)
	assert.Equal(t, "OPEN", created.GetFields()["status"].GetStringValue())

	c.mustCall("JoinSession", bo, map[string]any{"pin": pin})
	members := c.mustCall("GetMembers", "", map[string]any{"pin": pin})
	assert.Equal(t, "ana", members.GetFields()["host_username"].GetStringValue())
	assert.Len(t, members.GetFields()["usernames"].GetListValue().GetValues(), 2)

	c.mustCall("StartSession", "", map[string]any{"pin": pin})
	c.mustCall("StartRound", "", map[string]any{"pin": pin, "round_number": 1})

	answer := c.mustCall("SubmitAnswer", bo, map[string]any{
		"pin": pin, "round_number": 1, "category": "City", "text": "Kyoto",
	})
	assert.Equal(t, "Kyoto", answer.GetFields()["text"].GetStringValue())
	assert.NotEmpty(t, answer.GetFields()["id"].GetStringValue())

	c.mustCall("StopRound", ana, map[string]any{"pin": pin, "round_number": 1})

	view := c.mustCall("GetSession", "", map[string]any{"pin": pin})
	phase := view.GetFields()["phase"].GetStructValue().GetFields()
	assert.Equal(t, "VOTING", phase["phase"].GetStringValue())
	assert.Equal(t, float64(1), phase["category"].GetNumberValue())

	c.mustCall("SubmitVote", ana, map[string]any{
		"pin": pin, "answer_id": answer.GetFields()["id"].GetStringValue(), "valid": true,
	})
	c.mustCall("RequestSkip", ana, map[string]any{"pin": pin})

	board := c.mustCall("GetScoreboard", "", map[string]any{"pin": pin})
	assert.Len(t, board.GetFields()["standings"].GetListValue().GetValues(), 2)
}

func TestServiceErrorCodes(t *testing.T) {
	c := newTestClient(t)
	ana := c.register("ana")
	bo := c.register("bo")

	created := c.mustCall("CreateSession", ana, map[string]any{"round_count": 1, "round_length": "SHORT"})
	pin := int(created.GetFields()["pin"].GetNumberValue())

	tests := []struct {
		name      string
		procedure string
		token     string
		body      map[string]any
		code      connect.Code
	}{
		{
			name:      "unknown session",
			procedure: "GetSession",
			body:      map[string]any{"pin": 1},
			code:      connect.CodeNotFound,
		},
		{
			name:      "round before session start",
			procedure: "StartRound",
			body:      map[string]any{"pin": pin, "round_number": 1},
			code:      connect.CodeFailedPrecondition,
		},
		{
			name:      "bad round count",
			procedure: "CreateSession",
			token:     bo,
			body:      map[string]any{"round_count": 0, "round_length": "SHORT"},
			code:      connect.CodeInvalidArgument,
		},
		{
			name:      "malformed answer id",
			procedure: "SubmitVote",
			token:     ana,
			body:      map[string]any{"pin": pin, "answer_id": "nope", "valid": true},
			code:      connect.CodeInvalidArgument,
		},
		{
			name:      "wrongly typed field",
			procedure: "JoinSession",
			token:     bo,
			body:      map[string]any{"pin": "abc"},
			code:      connect.CodeInvalidArgument,
		},
		{
			name:      "non member stop",
			procedure: "StopRound",
			token:     bo,
			body:      map[string]any{"pin": pin, "round_number": 1},
			code:      connect.CodeNotFound,
		},
		{
			name:      "missing token",
			procedure: "JoinSession",
			body:      map[string]any{"pin": pin},
			code:      connect.CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.call(tt.procedure, tt.token, tt.body)
			require.Error(t, err)
			assert.Equal(t, tt.code, connect.CodeOf(err), err.Error())
		})
	}
}

func TestToConnectError(t *testing.T) {
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(toConnectError("p", apperrors.NewNotFound("session", 1))))
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(toConnectError("p", apperrors.NewConflict("nope"))))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(toConnectError("p", apperrors.NewValidation("x", "bad"))))
	assert.Equal(t, connect.CodeInternal, connect.CodeOf(toConnectError("p", assert.AnError)))

	passthrough := connect.NewError(connect.CodeUnauthenticated, assert.AnError)
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(toConnectError("p", passthrough)))
}
