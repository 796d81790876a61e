package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/use-agent/postwatch/config"
)

// storeSuite runs the same contract against every backend.
type storeSuite struct {
	suite.Suite
	open  func(*suite.Suite) Store
	store Store
	ctx   context.Context
}

func (s *storeSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.open(&s.Suite)
}

func (s *storeSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func (s *storeSuite) TestGet_FirstRun() {
	marker, found, err := s.store.Get(s.ctx, "acct")
	s.Require().NoError(err)
	s.False(found)
	s.Empty(marker)
}

func (s *storeSuite) TestPutThenGet() {
	s.Require().NoError(s.store.Put(s.ctx, "acct", "https://x.com/acct/status/1"))

	marker, found, err := s.store.Get(s.ctx, "acct")
	s.Require().NoError(err)
	s.True(found)
	s.Equal("https://x.com/acct/status/1", marker)
}

func (s *storeSuite) TestPut_Overwrites() {
	s.Require().NoError(s.store.Put(s.ctx, "acct", "https://x.com/acct/status/1"))
	s.Require().NoError(s.store.Put(s.ctx, "acct", "https://x.com/acct/status/2"))

	marker, _, err := s.store.Get(s.ctx, "acct")
	s.Require().NoError(err)
	s.Equal("https://x.com/acct/status/2", marker)
}

func (s *storeSuite) TestHandlesAreIndependent() {
	s.Require().NoError(s.store.Put(s.ctx, "one", "https://x.com/one/status/1"))

	_, found, err := s.store.Get(s.ctx, "two")
	s.Require().NoError(err)
	s.False(found)
}

func (s *storeSuite) TestDelete() {
	s.Require().NoError(s.store.Put(s.ctx, "acct", "https://x.com/acct/status/1"))
	s.Require().NoError(s.store.Delete(s.ctx, "acct"))
	s.Require().NoError(s.store.Delete(s.ctx, "acct"), "deleting a missing marker is not an error")

	_, found, err := s.store.Get(s.ctx, "acct")
	s.Require().NoError(err)
	s.False(found)
}

func TestFileStore(t *testing.T) {
	suite.Run(t, &storeSuite{open: func(s *suite.Suite) Store {
		return NewFileStore(filepath.Join(s.T().TempDir(), "log"))
	}})
}

func TestSQLiteStore(t *testing.T) {
	suite.Run(t, &storeSuite{open: func(s *suite.Suite) Store {
		store, err := OpenSQLite(context.Background(), filepath.Join(s.T().TempDir(), "state.db"))
		s.Require().NoError(err)
		return store
	}})
}

func TestFileStore_RawTextFormat(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	ctx := context.Background()

	if err := store.Put(ctx, "acct", "https://x.com/acct/status/1"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "acct_last_tweet.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "https://x.com/acct/status/1" {
		t.Errorf("marker file = %q, want the bare URL", data)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the marker file, found %d entries", len(entries))
	}
}

func TestFileStore_TrailingNewlineTolerated(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "acct_last_tweet.txt"), []byte("https://x.com/acct/status/1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	marker, found, err := NewFileStore(dir).Get(context.Background(), "acct")
	if err != nil || !found {
		t.Fatalf("Get = (%q, %v, %v)", marker, found, err)
	}
	if marker != "https://x.com/acct/status/1" {
		t.Errorf("marker = %q", marker)
	}
}

func TestFileStore_ReadsExistingDeploymentMarker(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "acct_last_tweet.txt"), []byte("https://x.com/acct/status/1"), 0o644); err != nil {
		t.Fatal(err)
	}

	marker, found, err := NewFileStore(dir).Get(context.Background(), "acct")
	if err != nil {
		t.Fatal(err)
	}
	if !found || marker != "https://x.com/acct/status/1" {
		t.Errorf("Get = (%q, %v), want the existing marker", marker, found)
	}
}

func TestFileStore_RejectsUnsafeHandle(t *testing.T) {
	store := NewFileStore(t.TempDir())
	for _, h := range []string{"", "../escape", `a\b`, "a/b"} {
		if err := store.Put(context.Background(), h, "x"); err == nil {
			t.Errorf("Put(%q) should fail", h)
		}
	}
}

func TestOpen_SelectsBackend(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.StateConfig{Backend: config.StateFile, Dir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*FileStore); !ok {
		t.Errorf("file backend returned %T", s)
	}

	s, err = Open(ctx, config.StateConfig{Backend: config.StateSQLite, SQLitePath: filepath.Join(t.TempDir(), "s.db")})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, ok := s.(*SQLStore); !ok {
		t.Errorf("sqlite backend returned %T", s)
	}

	if _, err := Open(ctx, config.StateConfig{Backend: "redis"}); err == nil {
		t.Error("unknown backend should fail")
	}
}
