package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/matheodrd/httphelper/handler"
)

// maxClientIDLength bounds client supplied identifiers, which end up in logs.
const maxClientIDLength = 64

func (s *Server) wsHandler() http.HandlerFunc {
	return handler.Handler(func(w http.ResponseWriter, r *http.Request) error {
		clientID := r.URL.Query().Get("client_id")
		if len(clientID) > maxClientIDLength {
			return handler.NewErrWithStatus(http.StatusBadRequest, errors.New("client_id too long"))
		}
		if clientID == "" {
			clientID = uuid.NewString()
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return handler.NewErrWithStatus(http.StatusInternalServerError, fmt.Errorf("websocket accept: %w", err))
		}

		s.WebsocketManager.HandleNewConnection(clientID, conn)
		return nil
	})
}

func (s *Server) apiHealthHandler() http.HandlerFunc {
	return handler.Handler(func(w http.ResponseWriter, _ *http.Request) error {
		return writeJSON(w, map[string]string{"status": "ok"})
	})
}

func (s *Server) companiesHandler() http.HandlerFunc {
	return handler.Handler(func(w http.ResponseWriter, r *http.Request) error {
		if s.Directory == nil {
			return handler.NewErrWithStatus(http.StatusServiceUnavailable, errors.New("directory not loaded"))
		}
		if q := r.URL.Query().Get("q"); q != "" {
			return writeJSON(w, s.Directory.Search(q))
		}
		return writeJSON(w, s.Directory.All())
	})
}

func (s *Server) buildingsHandler() http.HandlerFunc {
	return handler.Handler(func(w http.ResponseWriter, _ *http.Request) error {
		if s.Directory == nil {
			return handler.NewErrWithStatus(http.StatusServiceUnavailable, errors.New("directory not loaded"))
		}
		return writeJSON(w, s.Directory.Buildings())
	})
}

func (s *Server) buildingMarkersHandler() http.HandlerFunc {
	return handler.Handler(func(w http.ResponseWriter, _ *http.Request) error {
		if s.Directory == nil {
			return handler.NewErrWithStatus(http.StatusServiceUnavailable, errors.New("directory not loaded"))
		}
		data, err := s.Directory.BuildingMarkers().MarshalJSON()
		if err != nil {
			return handler.NewErrWithStatus(http.StatusInternalServerError, fmt.Errorf("encoding building markers: %w", err))
		}
		w.Header().Set("Content-Type", "application/geo+json")
		_, err = w.Write(data)
		return err
	})
}

func writeJSON(w http.ResponseWriter, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return handler.NewErrWithStatus(http.StatusInternalServerError, fmt.Errorf("encoding response: %w", err))
	}
	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(data)
	return err
}
