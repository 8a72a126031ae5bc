package models

import (
	"encoding/json"
	"time"
)

// Roles a User can hold. Stored verbatim in the users.role column.
const (
	RoleAdmin = "admin"
	RoleUser  = "usuario"
	RoleOwner = "dueño"
)

// User is an account that can log in and own notifications.
// PasswordHash never leaves the server.
type User struct {
	ID           int64      `json:"id"`
	FirstName    string     `json:"nombre"`
	LastName     string     `json:"apellidos"`
	Email        string     `json:"email"`
	Role         string     `json:"rol"`
	Active       bool       `json:"activo"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"fecha_creacion"`
	LastAccessAt *time.Time `json:"ultimo_acceso,omitempty"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleUser, RoleOwner:
		return true
	}
	return false
}

const (
	SexMale   = "macho"
	SexFemale = "hembra"
)

// Animal is a single head of livestock, identified on the farm by its ear tag.
//
// Health, Production and MovementHistory are free-form JSON arrays kept as
// raw messages so the API returns them exactly as stored.
type Animal struct {
	ID                 int64           `json:"id"`
	Tag                string          `json:"chapeta"`
	Name               *string         `json:"nombre"`
	Sex                string          `json:"sexo"`
	BirthDate          time.Time       `json:"fecha_nacimiento"`
	Breed              string          `json:"raza"`
	ReproductiveStatus string          `json:"estado_reproductivo"`
	ProductiveStatus   string          `json:"estado_productivo"`
	Health             json.RawMessage `json:"salud"`
	Production         json.RawMessage `json:"produccion"`
	CurrentWeight      *float64        `json:"peso_actual"`
	CurrentLocation    *string         `json:"ubicacion_actual"`
	MovementHistory    json.RawMessage `json:"historial_movimientos"`
	OffspringIDs       []int64         `json:"descendencia"`
	RegisteredAt       time.Time       `json:"fecha_alta_sistema"`
	RemovedAt          *time.Time      `json:"fecha_baja_sistema"`
	PhotoURL           *string         `json:"foto_perfil_url"`
	Notes              *string         `json:"notas"`
	CreatedBy          *int64          `json:"creado_por"`
	ModifiedBy         *int64          `json:"modificado_por"`
}

// AnimalFilter narrows List results. Empty fields are ignored.
type AnimalFilter struct {
	ProductiveStatus   string
	ReproductiveStatus string
	Sex                string
	Breed              string
}

const (
	IncidentPending  = "pendiente"
	IncidentTreating = "en tratamiento"
	IncidentResolved = "resuelto"
)

// Incident is a health problem detected on an animal.
type Incident struct {
	ID          int64      `json:"id"`
	AnimalID    int64      `json:"animal"`
	CreatedBy   *int64     `json:"creado_por"`
	Kind        string     `json:"tipo"`
	Description string     `json:"descripcion"`
	DetectedOn  time.Time  `json:"fecha_deteccion"`
	ReportedBy  *int64     `json:"reportado_por"`
	Status      string     `json:"estado"`
	ResolvedOn  *time.Time `json:"fecha_resolucion"`
}

// Treatment is a medication administered to an animal.
type Treatment struct {
	ID             int64     `json:"id"`
	AnimalID       int64     `json:"animal"`
	Date           time.Time `json:"fecha"`
	Medication     string    `json:"medicamento"`
	Dose           string    `json:"dosis"`
	Duration       string    `json:"duracion"`
	AdministeredBy *int64    `json:"administrado_por"`
	Notes          *string   `json:"observaciones"`
}

const (
	EventVetVisit   = "visita"
	EventTreatment  = "tratamiento"
	EventBirthAlert = "alerta_parto"
	EventOther      = "otro"
)

// Event is a calendar entry, optionally tied to one animal.
type Event struct {
	ID          int64      `json:"id"`
	Recurring   bool       `json:"recurrente"`
	Title       string     `json:"titulo"`
	Description *string    `json:"descripcion"`
	StartsAt    time.Time  `json:"fecha_inicio"`
	EndsAt      *time.Time `json:"fecha_fin"`
	AnimalID    *int64     `json:"animal"`
	Kind        string     `json:"tipo"`
	CreatedBy   *int64     `json:"creado_por"`
}

const (
	GroupProduction = "produccion"
	GroupGestation  = "gestacion"
	GroupTreatment  = "tratamiento"
)

// Group is a named set of animals managed together.
type Group struct {
	ID           int64     `json:"id"`
	Name         string    `json:"nombre"`
	Description  *string   `json:"descripcion"`
	Kind         string    `json:"tipo"`
	AnimalIDs    []int64   `json:"animal_ids"`
	CreatedOn    time.Time `json:"fecha_creacion"`
	CurrentState *string   `json:"estado_actual"`
}

// Notification categories.
const (
	NotificationInfo        = "informativa"
	NotificationHealthAlert = "alerta_sanitaria"
	NotificationReminder    = "recordatorio"
)

// Notification is a message addressed to one user. Once written only Read
// may change.
type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"usuario"`
	Message   string    `json:"mensaje"`
	Category  string    `json:"tipo"`
	CreatedAt time.Time `json:"fecha_creacion"`
	Read      bool      `json:"visto"`
	AnimalID  *int64    `json:"relacionado_con_animal"`
	EventID   *int64    `json:"relacionado_con_evento"`
}

// AuditLog is an append-only record of who changed what.
type AuditLog struct {
	ID        int64           `json:"id"`
	UserID    *int64          `json:"usuario"`
	Action    string          `json:"tipo_accion"`
	Entity    string          `json:"entidad_afectada"`
	EntityID  string          `json:"entidad_id"`
	CreatedAt time.Time       `json:"fecha_hora"`
	Changes   json.RawMessage `json:"cambios"`
	Note      *string         `json:"observaciones"`
}

// AuditLogFilter narrows audit log queries. Zero values are ignored.
type AuditLogFilter struct {
	Action string
	Entity string
	UserID int64
	Limit  int
}
