package webhdfs

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCluster struct {
	mu         sync.Mutex
	files      map[string][]byte
	createArgs []string
	failCreate bool
	failWrite  bool
	datanode   *httptest.Server
}

func newFakeCluster(t *testing.T) (*fakeCluster, *httptest.Server) {
	t.Helper()
	cluster := &fakeCluster{files: map[string][]byte{}}

	cluster.datanode = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cluster.failWrite {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, "disk full")
			return
		}
		body, _ := io.ReadAll(r.Body)
		cluster.mu.Lock()
		cluster.files[r.URL.Query().Get("target")] = body
		cluster.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(cluster.datanode.Close)

	namenode := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Query().Get("op") != "CREATE" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		cluster.mu.Lock()
		cluster.createArgs = append(cluster.createArgs, r.URL.RawQuery)
		cluster.mu.Unlock()
		if cluster.failCreate {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `{"RemoteException":{"exception":"AccessControlException","message":"Permission denied"}}`)
			return
		}
		target := r.URL.Path[len("/webhdfs/v1"):]
		w.Header().Set("Location", cluster.datanode.URL+"/data?target="+target)
		w.WriteHeader(http.StatusTemporaryRedirect)
	}))
	t.Cleanup(namenode.Close)

	return cluster, namenode
}

func writeLocal(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "order-cleaned.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPublishTwoStepCreate(t *testing.T) {
	cluster, namenode := newFakeCluster(t)
	dest := NewDestination(Config{BaseURL: namenode.URL + "/", User: "hdfs"})
	local := writeLocal(t, "id,amount\nA1,10\n")

	err := dest.Publish(context.Background(), local, "/user/hdfs/userfile/order/upload_date=20241206/order-20241206-20241206090507.csv", true)
	require.NoError(t, err)

	assert.Equal(t, "id,amount\nA1,10\n", string(cluster.files["/user/hdfs/userfile/order/upload_date=20241206/order-20241206-20241206090507.csv"]))
	require.Len(t, cluster.createArgs, 1)
	assert.Contains(t, cluster.createArgs[0], "overwrite=true")
	assert.Contains(t, cluster.createArgs[0], "user.name=hdfs")
	assert.Equal(t, "hdfs", dest.Kind())
}

func TestPublishSurfacesRemoteException(t *testing.T) {
	cluster, namenode := newFakeCluster(t)
	cluster.failCreate = true
	dest := NewDestination(Config{BaseURL: namenode.URL})

	err := dest.Publish(context.Background(), writeLocal(t, "a\n"), "/x.csv", true)

	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, http.StatusForbidden, remote.StatusCode)
	assert.Equal(t, "AccessControlException", remote.Exception)
	assert.Empty(t, cluster.files)
}

func TestPublishDatanodeFailure(t *testing.T) {
	cluster, namenode := newFakeCluster(t)
	cluster.failWrite = true
	dest := NewDestination(Config{BaseURL: namenode.URL})

	err := dest.Publish(context.Background(), writeLocal(t, "a\n"), "/x.csv", true)

	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, http.StatusInternalServerError, remote.StatusCode)
	assert.Equal(t, "disk full", remote.Message)
}

func TestPublishMissingLocalFile(t *testing.T) {
	_, namenode := newFakeCluster(t)
	dest := NewDestination(Config{BaseURL: namenode.URL})

	err := dest.Publish(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), "/x.csv", true)
	assert.Error(t, err)
}
