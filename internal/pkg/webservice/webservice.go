package webservice

import (
	"encoding/json"
	"errors"
	"io/ioutil"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/ohowland/sldcore/internal/pkg/msg"
	"github.com/ohowland/sldcore/internal/pkg/netlist"
	"github.com/ohowland/sldcore/internal/pkg/store"
	"github.com/ohowland/sldcore/internal/pkg/topology"
)

const contentType = "application/json; charset=UTF-8"

// Server exposes a diagram store over HTTP.
type Server struct {
	store  *store.Store
	config config
}

type config struct {
	Addr string `json:"Addr"`
}

// ConnectionRequest names the two ends of a proposed wire.
type ConnectionRequest struct {
	Source topology.Endpoint `json:"source"`
	Target topology.Endpoint `json:"target"`
}

// ConnectionResponse is the outcome of POST /wires.
type ConnectionResponse struct {
	Wire   *topology.Wire  `json:"wire,omitempty"`
	Result topology.Result `json:"result"`
}

// ElementRequest is the body of POST /elements.
type ElementRequest struct {
	Type       topology.ElementType `json:"type"`
	Attributes topology.Attributes  `json:"attributes"`
}

// DeleteRequest is the body of POST /delete.
type DeleteRequest struct {
	Elements []string `json:"elements"`
	Wires    []string `json:"wires"`
}

// Event is one store message forwarded on /events.
type Event struct {
	Topic   string      `json:"topic"`
	Payload interface{} `json:"payload,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// New reads the server config. An empty Addr listens on :8080.
func New(configPath string, s *store.Store) (Server, error) {
	jsonConfig, err := ioutil.ReadFile(configPath)
	if err != nil {
		return Server{}, err
	}
	cfg := config{}
	if err := json.Unmarshal(jsonConfig, &cfg); err != nil {
		return Server{}, err
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	return Server{store: s, config: cfg}, nil
}

// Addr is the listen address.
func (s Server) Addr() string {
	return s.config.Addr
}

// Router builds the route table.
func (s Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", BaseHandler)
	r.HandleFunc("/validate", s.ValidateHandler).Methods("POST")
	r.HandleFunc("/elements", s.AddElementHandler).Methods("POST")
	r.HandleFunc("/elements/{id}", s.UpdateElementHandler).Methods("PATCH")
	r.HandleFunc("/wires", s.ConnectHandler).Methods("POST")
	r.HandleFunc("/wires/{id}", s.DisconnectHandler).Methods("DELETE")
	r.HandleFunc("/delete", s.DeleteHandler).Methods("POST")
	r.HandleFunc("/snapshot", s.SnapshotHandler).Methods("GET")
	r.HandleFunc("/audit", s.AuditHandler).Methods("GET")
	r.HandleFunc("/netlist", s.NetlistHandler).Methods("GET")
	r.HandleFunc("/events", s.EventsHandler).Methods("GET")
	return r
}

// ListenAndServe blocks serving the router on Addr.
func (s Server) ListenAndServe() error {
	log.Println("[Webservice] Starting Server on", s.config.Addr)
	return http.ListenAndServe(s.config.Addr, s.Router())
}

func BaseHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Println("[Webservice] malformed JSON:", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(code)
	if _, err := w.Write(body); err != nil {
		log.Println("[Webservice]", err)
	}
}

// writeError maps store and engine errors onto status codes.
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, store.ErrRejected):
		code = http.StatusConflict
	case errors.Is(err, store.ErrDerivedAttribute), errors.Is(err, topology.ErrUnknownType):
		code = http.StatusUnprocessableEntity
	}
	writeJSON(w, code, errorBody{err.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body, err := ioutil.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{err.Error()})
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		log.Println("[Webservice] malformed JSON:", err)
		writeJSON(w, http.StatusBadRequest, errorBody{err.Error()})
		return false
	}
	return true
}

func (s Server) ValidateHandler(w http.ResponseWriter, r *http.Request) {
	req := ConnectionRequest{}
	if !decode(w, r, &req) {
		return
	}
	result, err := s.store.Validate(req.Source, req.Target)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s Server) AddElementHandler(w http.ResponseWriter, r *http.Request) {
	req := ElementRequest{}
	if !decode(w, r, &req) {
		return
	}
	e, err := s.store.AddElement(req.Type, req.Attributes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s Server) UpdateElementHandler(w http.ResponseWriter, r *http.Request) {
	attrs := topology.Attributes{}
	if !decode(w, r, &attrs) {
		return
	}
	e, err := s.store.UpdateAttributes(mux.Vars(r)["id"], attrs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s Server) ConnectHandler(w http.ResponseWriter, r *http.Request) {
	req := ConnectionRequest{}
	if !decode(w, r, &req) {
		return
	}
	wire, result, err := s.store.Connect(req.Source, req.Target)
	switch {
	case errors.Is(err, store.ErrRejected):
		writeJSON(w, http.StatusConflict, ConnectionResponse{Result: result})
	case err != nil:
		writeError(w, err)
	default:
		writeJSON(w, http.StatusCreated, ConnectionResponse{Wire: &wire, Result: result})
	}
}

func (s Server) DisconnectHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Disconnect(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s Server) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	req := DeleteRequest{}
	if !decode(w, r, &req) {
		return
	}
	result, err := s.store.Delete(req.Elements, req.Wires)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s Server) SnapshotHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

func (s Server) AuditHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Audit())
}

func (s Server) NetlistHandler(w http.ResponseWriter, r *http.Request) {
	n, err := netlist.Build(s.store.Snapshot())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// EventsHandler upgrades to a websocket and streams every store event until
// the client goes away. The first frame confirms the subscription.
func (s Server) EventsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("[Webservice] websocket upgrade:", err)
		return
	}
	defer conn.Close()

	// a read error means the client closed
	gone := make(chan bool)
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				close(gone)
				return
			}
		}
	}()

	pid := uuid.New()
	events := make(chan msg.Msg, 50)
	for _, topic := range msg.Topics() {
		ch, err := s.store.Subscribe(pid, topic)
		if err != nil {
			log.Println("[Webservice]", err)
			s.store.Unsubscribe(pid)
			return
		}
		go func(ch <-chan msg.Msg) {
			for m := range ch {
				select {
				case events <- m:
				case <-gone:
					return
				}
			}
		}(ch)
	}
	defer s.store.Unsubscribe(pid)

	if err := conn.WriteJSON(Event{Topic: "subscribed"}); err != nil {
		return
	}
	for {
		select {
		case m := <-events:
			if err := conn.WriteJSON(Event{Topic: m.Topic().String(), Payload: m.Payload()}); err != nil {
				log.Println("[Webservice] websocket write:", err)
				return
			}
		case <-gone:
			return
		}
	}
}
