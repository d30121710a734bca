package gce

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitOperationPaths(t *testing.T) {
	t.Parallel()

	var gotPath string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, http.MethodPost, r.Method)
		fmt.Fprint(w, `{"name":"op-1","status":"DONE"}`)
	}))
	ctx := context.Background()

	op, err := c.WaitZoneOperation(ctx, "p", "us-central1-a", "op-1")
	require.NoError(t, err)
	assert.True(t, op.Done())
	assert.Equal(t, "/projects/p/zones/us-central1-a/operations/op-1/wait", gotPath)

	_, err = c.WaitRegionOperation(ctx, RegionLocator{Project: "p", Region: "us-central1"}, "op-1")
	require.NoError(t, err)
	assert.Equal(t, "/projects/p/regions/us-central1/operations/op-1/wait", gotPath)

	_, err = c.WaitGlobalOperation(ctx, "p", "op-1")
	require.NoError(t, err)
	assert.Equal(t, "/projects/p/global/operations/op-1/wait", gotPath)
}

func TestWaitOperationNotDoneYet(t *testing.T) {
	t.Parallel()

	// The server-side wait timed out before the operation finished. That is
	// not an error; the caller sees a not-done operation and re-invokes.
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name":"op-1","status":"RUNNING"}`)
	}))

	op, err := c.WaitZoneOperation(context.Background(), "p", "us-central1-a", "op-1")
	require.NoError(t, err)
	assert.False(t, op.Done())
}

func TestWaitOperationEmbeddedError(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"name":"op-1","status":"DONE",
			"error":{"errors":[
				{"code":"QUOTA_EXCEEDED","message":"Quota 'CPUS' exceeded"},
				{"code":"SECOND","message":"discarded"}
			]}
		}`)
	}))

	op, err := c.WaitZoneOperation(context.Background(), "p", "us-central1-a", "op-1")
	var oe *OperationError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, "QUOTA_EXCEEDED", oe.Code)
	assert.Equal(t, "Quota 'CPUS' exceeded", oe.Message)
	// The operation view is still returned alongside the error.
	require.NotNil(t, op)
	assert.True(t, op.Done())
}

func TestOperationErr(t *testing.T) {
	t.Parallel()

	assert.NoError(t, (&Operation{Status: "DONE"}).Err())
	assert.NoError(t, (&Operation{Status: "DONE", Error: &OperationErrorList{}}).Err())

	op := &Operation{Status: "DONE", Error: &OperationErrorList{
		Errors: []OperationErrorItem{{Code: "C", Message: "m"}},
	}}
	var oe *OperationError
	require.ErrorAs(t, op.Err(), &oe)
	assert.Equal(t, "C", oe.Code)
}

func TestClassifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		wantNil  bool
		wantInFx string
	}{
		{name: "nil", err: nil, wantNil: true},
		{name: "auth error", err: &AuthError{Err: fmt.Errorf("invalid_grant")}, wantInFx: "strato init"},
		{name: "401", err: &StatusError{Code: 401}, wantInFx: "strato init"},
		{name: "403", err: &StatusError{Code: 403}, wantInFx: "Compute Admin"},
		{name: "429", err: &StatusError{Code: 429}, wantInFx: "quota"},
		{name: "connection refused", err: fmt.Errorf("dial tcp: connection refused"), wantInFx: "internet connection"},
		{name: "unrecognized", err: fmt.Errorf("boom"), wantNil: true},
		{name: "unrecognized status", err: &StatusError{Code: 500}, wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ce := ClassifyError(tt.err)
			if tt.wantNil {
				assert.Nil(t, ce)
				return
			}
			require.NotNil(t, ce)
			assert.Contains(t, ce.Fix, tt.wantInFx)
			assert.ErrorIs(t, ce, tt.err)
		})
	}
}
