package realtime

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lalith-99/herdstream/internal/models"
)

// Outbound message types.
const (
	TypeConnectionEstablished    = "connection_established"
	TypePong                     = "pong"
	TypeError                    = "error"
	TypeSubscriptionConfirmed    = "subscription_confirmed"
	TypeUnsubscriptionConfirmed  = "unsubscription_confirmed"
	TypeAnimalCreated            = "animal_created"
	TypeAnimalUpdated            = "animal_updated"
	TypeAnimalDeleted            = "animal_deleted"
	TypeNotification             = "notification"
	TypePendingNotification      = "pending_notification"
	TypeBroadcast                = "broadcast"
	TypeNewLog                   = "new_log"
	TypeRecentLogs               = "recent_logs"
	TypeFilteredLogs             = "filtered_logs"
	TypeUnreadCount              = "unread_count"
	TypeNotificationReadResponse = "notification_read_response"
)

// Inbound message types.
const (
	TypePing              = "ping"
	TypeSubscribeAnimal   = "subscribe_animal"
	TypeUnsubscribeAnimal = "unsubscribe_animal"
	TypeGetRecentLogs     = "get_recent_logs"
	TypeFilterLogs        = "filter_logs"
	TypeMarkAsRead        = "mark_as_read"
	TypeGetUnreadCount    = "get_unread_count"
)

// Error replies sent to clients.
const (
	msgInvalidJSON     = "Formato JSON inválido"
	msgUnsupportedType = "Tipo de mensaje no soportado"
	msgQueryFailed     = "Error procesando la solicitud"
)

// Envelope is the shape of every push relayed through the hub. Data is
// forwarded verbatim.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NewEnvelope marshals data once so the same bytes can be fanned out.
func NewEnvelope(msgType string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	return json.Marshal(Envelope{Type: msgType, Data: raw})
}

type connectionEstablishedReply struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	UserID  int64  `json:"user_id"`
}

type pongReply struct {
	Type      string          `json:"type"`
	Timestamp json.RawMessage `json:"timestamp"`
}

type errorReply struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type subscriptionReply struct {
	Type     string `json:"type"`
	AnimalID int64  `json:"animal_id"`
}

type readResponseReply struct {
	Type           string `json:"type"`
	NotificationID int64  `json:"notification_id"`
	Success        bool   `json:"success"`
}

type unreadCountReply struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// inbound is the closed set of client messages. Each endpoint handles the
// variants it knows and answers everything else with an error.
type inbound interface{ inboundType() string }

type pingMsg struct {
	Timestamp json.RawMessage `json:"timestamp"`
}

type subscribeAnimalMsg struct {
	AnimalID int64 `json:"animal_id"`
}

type unsubscribeAnimalMsg struct {
	AnimalID int64 `json:"animal_id"`
}

type getRecentLogsMsg struct {
	Limit *int `json:"limit"`
}

// LogFilters accepts both the English and the stored Spanish field names.
type LogFilters struct {
	Action     string `json:"action"`
	Entity     string `json:"entity"`
	UserID     int64  `json:"user_id"`
	TipoAccion string `json:"tipo_accion"`
	Entidad    string `json:"entidad_afectada"`
	UsuarioID  int64  `json:"usuario_id"`
}

func (f LogFilters) auditFilter(limit int) models.AuditLogFilter {
	out := models.AuditLogFilter{Action: f.Action, Entity: f.Entity, UserID: f.UserID, Limit: limit}
	if out.Action == "" {
		out.Action = f.TipoAccion
	}
	if out.Entity == "" {
		out.Entity = f.Entidad
	}
	if out.UserID == 0 {
		out.UserID = f.UsuarioID
	}
	return out
}

type filterLogsMsg struct {
	Filters LogFilters `json:"filters"`
}

type markAsReadMsg struct {
	NotificationID int64 `json:"notification_id"`
}

type getUnreadCountMsg struct{}

type unknownMsg struct {
	Type string
}

func (pingMsg) inboundType() string              { return TypePing }
func (subscribeAnimalMsg) inboundType() string   { return TypeSubscribeAnimal }
func (unsubscribeAnimalMsg) inboundType() string { return TypeUnsubscribeAnimal }
func (getRecentLogsMsg) inboundType() string     { return TypeGetRecentLogs }
func (filterLogsMsg) inboundType() string        { return TypeFilterLogs }
func (markAsReadMsg) inboundType() string        { return TypeMarkAsRead }
func (getUnreadCountMsg) inboundType() string    { return TypeGetUnreadCount }
func (m unknownMsg) inboundType() string         { return m.Type }

var errInvalidJSON = errors.New("invalid json")

// parseInbound decodes a client frame into its variant. A frame that is not
// a JSON object, or whose fields do not match the declared type, returns
// errInvalidJSON.
func parseInbound(data []byte) (inbound, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, errInvalidJSON
	}

	var msg inbound
	switch head.Type {
	case TypePing:
		msg = &pingMsg{}
	case TypeSubscribeAnimal:
		msg = &subscribeAnimalMsg{}
	case TypeUnsubscribeAnimal:
		msg = &unsubscribeAnimalMsg{}
	case TypeGetRecentLogs:
		msg = &getRecentLogsMsg{}
	case TypeFilterLogs:
		msg = &filterLogsMsg{}
	case TypeMarkAsRead:
		msg = &markAsReadMsg{}
	case TypeGetUnreadCount:
		return getUnreadCountMsg{}, nil
	default:
		return unknownMsg{Type: head.Type}, nil
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, errInvalidJSON
	}
	return deref(msg), nil
}

func deref(msg inbound) inbound {
	switch m := msg.(type) {
	case *pingMsg:
		return *m
	case *subscribeAnimalMsg:
		return *m
	case *unsubscribeAnimalMsg:
		return *m
	case *getRecentLogsMsg:
		return *m
	case *filterLogsMsg:
		return *m
	case *markAsReadMsg:
		return *m
	}
	return msg
}
