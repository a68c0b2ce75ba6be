package acceptfriendship

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"gametrack/internal/friends"
	sl "gametrack/internal/lib/logger"
	"gametrack/internal/middleware/requireauth"
	"gametrack/internal/models"
	"gametrack/internal/storage"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
)

type fakeAccepter struct {
	err error
}

func (f fakeAccepter) Accept(_ context.Context, userID, friendshipID int64) (models.Friendship, error) {
	return models.Friendship{ID: friendshipID, UserID2: userID, Status: models.FriendshipAccepted}, f.err
}

func TestAccept(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{name: "accepted", path: "/friends/3/accept", wantStatus: http.StatusOK, wantBody: `"status":"accepted"`},
		{name: "bad id", path: "/friends/abc/accept", wantStatus: http.StatusBadRequest, wantBody: "Friendship ID is missing."},
		{name: "not found", path: "/friends/3/accept", err: storage.ErrFriendshipNotFound, wantStatus: http.StatusNotFound, wantBody: "Friendship not found."},
		{name: "requester", path: "/friends/3/accept", err: friends.ErrNotAddressee, wantStatus: http.StatusForbidden, wantBody: "You are not authorized to accept this friendship."},
		{name: "twice", path: "/friends/3/accept", err: friends.ErrAlreadyAccepted, wantStatus: http.StatusBadRequest, wantBody: "Friendship already accepted."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			r.Put("/friends/{friendshipId}/accept", New(sl.NewDiscardLogger(), fakeAccepter{err: tt.err}))

			req := httptest.NewRequest(http.MethodPut, tt.path, nil)
			req = req.WithContext(requireauth.WithUserID(req.Context(), 2))
			rr := httptest.NewRecorder()

			r.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.wantBody)
		})
	}
}
