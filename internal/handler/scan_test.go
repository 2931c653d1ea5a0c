package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entrylog/internal/entry"
	"entrylog/internal/signup"
)

// scanStore is an in-memory entry.Store for handler tests.
type scanStore struct {
	users   map[string]*entry.User
	entries []entry.Entry
}

func newScanStore() *scanStore {
	return &scanStore{users: make(map[string]*entry.User)}
}

func (s *scanStore) addUser(tag, status string) *entry.User {
	u := &entry.User{
		UserID:     uuid.NewString(),
		IDNumber:   "2021-00042",
		RFIDTag:    tag,
		FirstName:  "Maria",
		LastName:   "Santos",
		UserType:   entry.TypeStudent,
		College:    "CCS",
		Department: "CS",
		Status:     status,
	}
	s.users[tag] = u
	return u
}

func (s *scanStore) UserByTag(ctx context.Context, tag string) (*entry.User, error) {
	return s.users[tag], nil
}

func (s *scanStore) ActiveUserByIDNumber(ctx context.Context, idNumber string) (*entry.User, error) {
	for _, u := range s.users {
		if u.IDNumber == idNumber && u.Status == entry.UserActive {
			return u, nil
		}
	}
	return nil, nil
}

func (s *scanStore) LookupUser(ctx context.Context, id string) (*entry.User, error) {
	for _, u := range s.users {
		if u.IDNumber == id || u.RFIDTag == id {
			return u, nil
		}
	}
	return nil, nil
}

func (s *scanStore) UserByIDNumberOrTag(ctx context.Context, idNumber, tag string) (*entry.User, error) {
	for _, u := range s.users {
		if (idNumber != "" && u.IDNumber == idNumber) || u.RFIDTag == tag {
			return u, nil
		}
	}
	return nil, nil
}

func (s *scanStore) CreateUser(ctx context.Context, u *entry.User) error {
	if u.UserID == "" {
		u.UserID = uuid.NewString()
	}
	if u.Status == "" {
		u.Status = entry.UserActive
	}
	s.users[u.RFIDTag] = u
	return nil
}

func (s *scanStore) UpdateUser(ctx context.Context, u *entry.User) error {
	for tag, existing := range s.users {
		if existing.UserID == u.UserID {
			delete(s.users, tag)
		}
	}
	s.users[u.RFIDTag] = u
	return nil
}

func (s *scanStore) LastSuccessSince(ctx context.Context, userID string, since time.Time) (*entry.Entry, error) {
	var latest *entry.Entry
	for i := range s.entries {
		e := s.entries[i]
		if e.UserID != userID || e.Status != entry.StatusSuccess || e.EntryTimestamp.Before(since) {
			continue
		}
		if latest == nil || e.EntryTimestamp.After(latest.EntryTimestamp) {
			latest = &s.entries[i]
		}
	}
	return latest, nil
}

func (s *scanStore) InsertEntry(ctx context.Context, e entry.Entry) (entry.Entry, error) {
	e.LogID = uuid.NewString()
	e.CreatedAt = time.Now().UTC()
	s.entries = append(s.entries, e)
	return e, nil
}

func (s *scanStore) InsertSuccessIfFresh(ctx context.Context, userID, method string, at, since time.Time) (*entry.Entry, error) {
	recent, _ := s.LastSuccessSince(ctx, userID, since)
	if recent != nil {
		return nil, nil
	}
	e, _ := s.InsertEntry(ctx, entry.Entry{UserID: userID, EntryTimestamp: at, EntryMethod: method, Status: entry.StatusSuccess})
	return &e, nil
}

// memKV is an in-memory signup.KV. failing flips every call to error.
type memKV struct {
	data    map[string]string
	failing bool
}

func newMemKV() *memKV { return &memKV{data: make(map[string]string)} }

func (m *memKV) Get(ctx context.Context, key string) (string, error) {
	if m.failing {
		return "", errors.New("redis down")
	}
	return m.data[key], nil
}

func (m *memKV) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	if m.failing {
		return errors.New("redis down")
	}
	m.data[key] = value
	return nil
}

func (m *memKV) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if m.failing {
		return errors.New("redis down")
	}
	return nil
}

func (m *memKV) Del(ctx context.Context, keys ...string) error {
	if m.failing {
		return errors.New("redis down")
	}
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func newPublicRouter(store *scanStore, kv signup.KV) (*gin.Engine, *signup.Bridge) {
	gin.SetMode(gin.TestMode)
	bridge := signup.NewBridge(kv, 10*time.Minute)
	h := &Handler{
		scans:  entry.NewService(store, 5*time.Minute),
		users:  store,
		bridge: bridge,
		cfg:    Config{FormBaseURL: "https://portal.example.edu"},
	}
	r := gin.New()
	r.POST("/api/entries/scan", h.Scan)
	r.POST("/api/entries/manual", h.ManualEntry)
	r.GET("/api/entries/form", h.UserByToken)
	r.POST("/api/users/upsert", h.UpsertUser)
	r.GET("/api/users/lookup/:id", h.LookupUser)
	return r, bridge
}

func postScan(t *testing.T, r *gin.Engine, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/entries/scan", bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestScanMissingTag(t *testing.T) {
	r, _ := newPublicRouter(newScanStore(), newMemKV())

	w, resp := postScan(t, r, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "RFID tag is required", resp["message"])
}

func TestScanUnknownTagStartsSignup(t *testing.T) {
	kv := newMemKV()
	r, _ := newPublicRouter(newScanStore(), kv)

	w, resp := postScan(t, r, gin.H{"rfidTag": "DEADBEEF"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "signup", resp["status"])

	token, ok := resp["token"].(string)
	require.True(t, ok, "token must be present")
	assert.Len(t, token, 40)
	assert.Contains(t, resp["formUrl"], "entry-form?token="+token)

	data := resp["data"].(map[string]any)
	assert.Equal(t, "DEADBEEF", data["rfidTag"])
}

func TestScanUnknownTagRedisDownDegradesToken(t *testing.T) {
	kv := newMemKV()
	kv.failing = true
	r, _ := newPublicRouter(newScanStore(), kv)

	w, resp := postScan(t, r, gin.H{"rfidTag": "DEADBEEF"})
	assert.Equal(t, http.StatusOK, w.Code, "token failure must not break the scan")
	assert.Equal(t, true, resp["success"])
	assert.Nil(t, resp["token"])
	assert.Nil(t, resp["formUrl"])
}

func TestScanInactiveUserGenericNotFound(t *testing.T) {
	store := newScanStore()
	store.addUser("TAG1", entry.UserInactive)
	r, _ := newPublicRouter(store, newMemKV())

	w, resp := postScan(t, r, gin.H{"rfidTag": "TAG1"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "User not found or inactive", resp["message"])
}

func TestScanFreshRecordsEntry(t *testing.T) {
	store := newScanStore()
	store.addUser("TAG1", entry.UserActive)
	r, _ := newPublicRouter(store, newMemKV())

	w, resp := postScan(t, r, gin.H{"rfidTag": "TAG1"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "Entry recorded successfully", resp["message"])

	data := resp["data"].(map[string]any)
	entryBody := data["entry"].(map[string]any)
	assert.Equal(t, "rfid", entryBody["entryMethod"])
	assert.Equal(t, "success", entryBody["status"])
	assert.NotEmpty(t, entryBody["logId"])

	userBody := data["user"].(map[string]any)
	assert.Equal(t, "2021-00042", userBody["idNumber"])
	assert.Equal(t, "Maria Santos", userBody["fullName"])

	require.Len(t, store.entries, 1)
}

func TestScanDuplicateConflict(t *testing.T) {
	store := newScanStore()
	store.addUser("TAG1", entry.UserActive)
	r, _ := newPublicRouter(store, newMemKV())

	w, _ := postScan(t, r, gin.H{"rfidTag": "TAG1"})
	require.Equal(t, http.StatusOK, w.Code)

	w, resp := postScan(t, r, gin.H{"rfidTag": "TAG1"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "duplicate", resp["status"])

	data := resp["data"].(map[string]any)
	assert.NotNil(t, data["lastEntry"])
	wait, ok := data["waitTime"].(float64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, wait, float64(0))

	// The duplicate attempt is logged too.
	require.Len(t, store.entries, 2)
	assert.Equal(t, entry.StatusDuplicate, store.entries[1].Status)
}
