package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entrylog/internal/entry"
)

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestManualEntryMissingIDNumber(t *testing.T) {
	r, _ := newPublicRouter(newScanStore(), newMemKV())

	w, resp := doJSON(t, r, http.MethodPost, "/api/entries/manual", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "ID number is required", resp["message"])
}

func TestManualEntryInactiveUserNotFound(t *testing.T) {
	store := newScanStore()
	u := store.addUser("TAG1", entry.UserInactive)
	r, _ := newPublicRouter(store, newMemKV())

	w, resp := doJSON(t, r, http.MethodPost, "/api/entries/manual", gin.H{"idNumber": u.IDNumber})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "User not found or inactive", resp["message"])
	assert.Empty(t, store.entries, "inactive user must not produce an entry row")
}

func TestManualEntryRecordsSuccess(t *testing.T) {
	store := newScanStore()
	u := store.addUser("TAG1", entry.UserActive)
	r, _ := newPublicRouter(store, newMemKV())

	w, resp := doJSON(t, r, http.MethodPost, "/api/entries/manual", gin.H{"idNumber": u.IDNumber})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["success"])

	require.Len(t, store.entries, 1)
	assert.Equal(t, entry.MethodManual, store.entries[0].EntryMethod)
	assert.Equal(t, entry.StatusSuccess, store.entries[0].Status)
	assert.Equal(t, u.UserID, store.entries[0].UserID)
}

func TestUserByTokenUnknown(t *testing.T) {
	r, _ := newPublicRouter(newScanStore(), newMemKV())

	w, resp := doJSON(t, r, http.MethodGet, "/api/entries/form?token=nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Token not found or expired", resp["message"])
}

func TestUserByTokenUnregisteredTagPromptsSignup(t *testing.T) {
	r, bridge := newPublicRouter(newScanStore(), newMemKV())
	token, err := bridge.IssueOrReuse(context.Background(), "NEWTAG")
	require.NoError(t, err)

	w, resp := doJSON(t, r, http.MethodGet, "/api/entries/form?token="+token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["success"])
	data := resp["data"].(map[string]any)
	assert.Equal(t, "NEWTAG", data["rfidTag"])
}

func TestUserByTokenReturnsExistingUser(t *testing.T) {
	store := newScanStore()
	u := store.addUser("TAG1", entry.UserActive)
	r, bridge := newPublicRouter(store, newMemKV())
	token, err := bridge.IssueOrReuse(context.Background(), "TAG1")
	require.NoError(t, err)

	w, resp := doJSON(t, r, http.MethodGet, "/api/entries/form?token="+token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	data := resp["data"].(map[string]any)
	assert.Equal(t, u.IDNumber, data["idNumber"])
	assert.Equal(t, "TAG1", data["rfidTag"])
}

func TestUpsertUserTagMismatch(t *testing.T) {
	store := newScanStore()
	r, bridge := newPublicRouter(store, newMemKV())
	token, err := bridge.IssueOrReuse(context.Background(), "TAG1")
	require.NoError(t, err)

	w, resp := doJSON(t, r, http.MethodPost, "/api/users/upsert", gin.H{
		"token":      token,
		"rfidTag":    "OTHERTAG",
		"idNumber":   "2021-00099",
		"firstName":  "Juan",
		"lastName":   "Cruz",
		"userType":   entry.TypeStudent,
		"college":    "CCS",
		"department": "CS",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "Provided RFID does not match token", resp["message"])
	assert.Empty(t, store.users, "mismatch must not create a user")
}

func TestUpsertUserExpiredToken(t *testing.T) {
	r, _ := newPublicRouter(newScanStore(), newMemKV())

	w, resp := doJSON(t, r, http.MethodPost, "/api/users/upsert", gin.H{
		"token":    "stale",
		"idNumber": "2021-00099",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid or expired token", resp["message"])
}

func TestUpsertUserCreatesFromTokenAndConsumesIt(t *testing.T) {
	store := newScanStore()
	kv := newMemKV()
	r, bridge := newPublicRouter(store, kv)
	ctx := context.Background()
	token, err := bridge.IssueOrReuse(ctx, "TAG1")
	require.NoError(t, err)

	w, resp := doJSON(t, r, http.MethodPost, "/api/users/upsert", gin.H{
		"token":      token,
		"idNumber":   "2021-00099",
		"firstName":  "Juan",
		"lastName":   "Cruz",
		"userType":   entry.TypeStudent,
		"college":    "CCS",
		"department": "CS",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["success"])

	data := resp["data"].(map[string]any)
	assert.Equal(t, "TAG1", data["rfidTag"], "tag comes from the token mapping")
	assert.Equal(t, "Juan Cruz", data["fullName"])

	created := store.users["TAG1"]
	require.NotNil(t, created)
	assert.Equal(t, "2021-00099", created.IDNumber)

	tag, err := bridge.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Empty(t, tag, "token is consumed after the upsert")

	// The visit itself is logged as a success entry.
	require.Len(t, store.entries, 1)
	assert.Equal(t, entry.StatusSuccess, store.entries[0].Status)
}

func TestUpsertUserMissingRequiredFields(t *testing.T) {
	r, bridge := newPublicRouter(newScanStore(), newMemKV())
	token, err := bridge.IssueOrReuse(context.Background(), "TAG1")
	require.NoError(t, err)

	w, resp := doJSON(t, r, http.MethodPost, "/api/users/upsert", gin.H{
		"token":     token,
		"firstName": "Juan",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing required fields for user creation", resp["message"])
}

func TestLookupUserByIDNumberOrTag(t *testing.T) {
	store := newScanStore()
	u := store.addUser("TAG1", entry.UserActive)
	r, _ := newPublicRouter(store, newMemKV())

	for _, id := range []string{u.IDNumber, u.RFIDTag} {
		w, resp := doJSON(t, r, http.MethodGet, "/api/users/lookup/"+id, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		data := resp["data"].(map[string]any)
		assert.Equal(t, u.IDNumber, data["idNumber"])
		assert.Equal(t, "Maria Santos", data["fullName"])
	}
}

func TestLookupUserNotFound(t *testing.T) {
	r, _ := newPublicRouter(newScanStore(), newMemKV())

	w, resp := doJSON(t, r, http.MethodGet, "/api/users/lookup/2099-00000", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "User not found", resp["message"])
}
