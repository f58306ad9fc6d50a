package display

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/ramen-pos/internal/board"
	"github.com/xenking/ramen-pos/internal/command"
	"github.com/xenking/ramen-pos/internal/domain/order"
	"github.com/xenking/ramen-pos/internal/wire"
)

const maxBody = 4 << 10

// getBoard returns the whole view. With ?since=<version> it waits until a
// newer view is published or the wait times out.
func (s *Server) getBoard(w http.ResponseWriter, r *http.Request) {
	v, ok := s.waitView(w, r)
	if !ok {
		return
	}

	var e jx.Encoder
	e.ObjStart()
	encodeHeader(&e, v)
	e.FieldStart("active")
	encodeOrders(&e, v.Active)
	e.FieldStart("finished")
	encodeOrders(&e, v.Finished)
	e.ObjEnd()
	writeJSON(w, http.StatusOK, e.Bytes())
}

func (s *Server) getActive(w http.ResponseWriter, r *http.Request) {
	v, ok := s.waitView(w, r)
	if !ok {
		return
	}

	var e jx.Encoder
	e.ObjStart()
	encodeHeader(&e, v)
	e.FieldStart("orders")
	encodeOrders(&e, v.Active)
	e.ObjEnd()
	writeJSON(w, http.StatusOK, e.Bytes())
}

func (s *Server) getActions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "orderID")
	o, ok := s.board.View().Find(id)
	if !ok {
		writeError(w, http.StatusNotFound, "order_not_found", "order "+id+" is not on the board")
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("order_id")
	e.Str(o.ID)
	e.FieldStart("status")
	e.Str(o.Status.String())
	e.FieldStart("next")
	e.ArrStart()
	for _, st := range o.Status.Next() {
		e.Str(st.String())
	}
	e.ArrEnd()
	e.ObjEnd()
	writeJSON(w, http.StatusOK, e.Bytes())
}

// postStatus forwards a status change. The board is not touched here; it
// changes once the backend broadcasts the update.
func (s *Server) postStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "orderID")

	raw, err := decodeStatusBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	target, err := order.ParseStatus(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown_status", err.Error())
		return
	}

	err = s.commands.RequestStatusChange(r.Context(), id, target)
	if err != nil {
		code, kind := mapCommandError(err)
		if code >= http.StatusInternalServerError {
			zctx.From(r.Context()).Warn("Status change failed",
				zap.String("order_id", id),
				zap.Stringer("target", target),
				zap.Error(err),
			)
		}
		writeError(w, code, kind, err.Error())
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("order_id")
	e.Str(id)
	e.FieldStart("requested")
	e.Str(target.String())
	e.ObjEnd()
	writeJSON(w, http.StatusAccepted, e.Bytes())
}

func mapCommandError(err error) (int, string) {
	var rejected *order.CommandRejectedError
	switch {
	case errors.As(err, &rejected):
		return http.StatusUnprocessableEntity, "rejected"
	case errors.Is(err, order.ErrUnknownStatus):
		return http.StatusBadRequest, "unknown_status"
	case errors.Is(err, command.ErrMissingOrderID):
		return http.StatusBadRequest, "missing_order_id"
	default:
		return http.StatusBadGateway, "backend_unavailable"
	}
}

func decodeStatusBody(w http.ResponseWriter, r *http.Request) (string, error) {
	var status string
	d := jx.Decode(http.MaxBytesReader(w, r.Body, maxBody), 512)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "status" {
			return d.Skip()
		}
		v, err := d.Str()
		status = v
		return err
	}); err != nil {
		return "", errors.Wrap(err, "decode body")
	}
	if status == "" {
		return "", errors.New("status is required")
	}
	return status, nil
}

func (s *Server) waitView(w http.ResponseWriter, r *http.Request) (board.View, bool) {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return s.board.View(), true
	}
	since, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_since", "since must be a view version")
		return board.View{}, false
	}

	timer := time.NewTimer(s.cfg.WaitTimeout)
	defer timer.Stop()
	for {
		changed := s.board.Changed()
		v := s.board.View()
		if v.Version > since {
			return v, true
		}
		select {
		case <-changed:
		case <-timer.C:
			return v, true
		case <-r.Context().Done():
			return v, true
		}
	}
}

func encodeHeader(e *jx.Encoder, v board.View) {
	e.FieldStart("version")
	e.Int64(int64(v.Version))
	e.FieldStart("connection")
	e.Str(v.Connection.String())
	e.FieldStart("stale")
	e.Bool(v.Stale)
	e.FieldStart("reconciled_at")
	if v.ReconciledAt.IsZero() {
		e.Null()
	} else {
		e.Str(v.ReconciledAt.UTC().Format(time.RFC3339Nano))
	}
}

func encodeOrders(e *jx.Encoder, orders []order.Order) {
	e.ArrStart()
	for _, o := range orders {
		wire.EncodeOrder(e, o)
	}
	e.ArrEnd()
}

func writeJSON(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, code int, kind, msg string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Str(kind)
	e.FieldStart("message")
	e.Str(msg)
	e.ObjEnd()
	writeJSON(w, code, e.Bytes())
}
