package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"canvaslab/internal/room"
)

type setPasswordRequest struct {
	AdminPassword        string `json:"adminPassword"`
	ReadonlyPassword     string `json:"readonlyPassword"`
	CurrentAdminPassword string `json:"currentAdminPassword"`
}

// handleGenerateName hands the client a memorable room name that is not
// taken by a live room or a snapshot on disk.
func (a *API) handleGenerateName(w http.ResponseWriter, _ *http.Request) {
	name, err := a.reg.GenerateUnusedName()
	if err != nil {
		a.log.Error("room name generation failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not generate a room name")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"roomName": name})
}

// handleCheckRoom reports whether a room will ask for a password on
// join. Unknown rooms answer false rather than 404: the client calls
// this before the room exists, and joining is what creates it.
func (a *API) handleCheckRoom(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if !room.ValidName(name) {
		respondError(w, http.StatusBadRequest, "invalid room name")
		return
	}

	if live, ok := a.reg.Lookup(name); ok {
		info, err := live.Info()
		if err == nil {
			respondJSON(w, http.StatusOK, map[string]bool{"requiresPassword": info.Protected})
			return
		}
		// Room shut down between Lookup and Info. Fall through to disk.
	}

	snap, err := a.st.Load(name)
	if err != nil {
		a.log.Error("room check failed", zap.String("room", name), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not check room")
		return
	}
	protected := snap != nil && (snap.AdminHash != "" || snap.ReadonlyHash != "")
	respondJSON(w, http.StatusOK, map[string]bool{"requiresPassword": protected})
}

// handleSetPassword changes a room's passwords over HTTP. The caller
// must present the current admin password unless the room has none
// yet. Clearing both passwords makes the room public again.
func (a *API) handleSetPassword(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if !room.ValidName(name) {
		respondError(w, http.StatusBadRequest, "invalid room name")
		return
	}
	if !a.reg.Exists(name) {
		respondError(w, http.StatusNotFound, "room not found")
		return
	}

	var req setPasswordRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	live, err := a.reg.GetOrCreate(name)
	if err != nil {
		if errors.Is(err, room.ErrTooManyRooms) {
			respondError(w, http.StatusServiceUnavailable, "server is at capacity")
			return
		}
		a.log.Error("room load failed", zap.String("room", name), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not load room")
		return
	}

	info, err := live.Info()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not load room")
		return
	}
	if info.AdminHash != "" && !room.CheckPassword(info.AdminHash, req.CurrentAdminPassword) {
		respondError(w, http.StatusUnauthorized, "wrong password")
		return
	}

	adminHash, err := room.HashPassword(req.AdminPassword)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not hash password")
		return
	}
	readonlyHash, err := room.HashPassword(req.ReadonlyPassword)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not hash password")
		return
	}

	if err := live.SetPasswordHashes(adminHash, readonlyHash); err != nil {
		respondError(w, http.StatusInternalServerError, "could not update room")
		return
	}
	a.log.Info("room passwords updated",
		zap.String("room", name),
		zap.Bool("protected", adminHash != "" || readonlyHash != ""))
	respondJSON(w, http.StatusOK, map[string]bool{
		"isPasswordProtected": adminHash != "" || readonlyHash != "",
	})
}
