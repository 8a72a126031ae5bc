package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/herdstream/internal/audit"
	"github.com/lalith-99/herdstream/internal/auth"
	"github.com/lalith-99/herdstream/internal/models"
	"github.com/lalith-99/herdstream/internal/notify"
	"github.com/lalith-99/herdstream/internal/realtime"
	"github.com/lalith-99/herdstream/internal/repository"
	"github.com/lalith-99/herdstream/internal/repository/memory"
	"github.com/lalith-99/herdstream/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret-that-is-at-least-32-characters"

func init() {
	gin.SetMode(gin.TestMode)
}

type published struct {
	channel string
	msgType string
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (p *recordingPublisher) Publish(_ context.Context, channel, msgType string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{channel: channel, msgType: msgType})
	return nil
}

func (p *recordingPublisher) types(channel string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, m := range p.msgs {
		if m.channel == channel {
			out = append(out, m.msgType)
		}
	}
	return out
}

// fakeImages keeps uploads in memory and hands out URLs under one bucket.
type fakeImages struct {
	mu        sync.Mutex
	uploads   []storage.Image
	deleted   []string
	deleteErr error
}

func (f *fakeImages) Upload(_ context.Context, img storage.Image) (*storage.Stored, error) {
	if _, err := io.ReadAll(img.Body); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, img)
	name := fmt.Sprintf("%s/%s_%d%s", storage.Folder, img.AnimalTag, len(f.uploads), filepath.Ext(img.Filename))
	return &storage.Stored{URL: "http://minio.test/herdstream/" + name, ObjectName: name}, nil
}

func (f *fakeImages) Delete(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, url)
	return nil
}

type failingPinger struct{}

func (failingPinger) Health(context.Context) error { return errors.New("connection refused") }

type apiEnv struct {
	store  *repository.Store
	pub    *recordingPublisher
	router *gin.Engine
}

func newAPIEnv(t *testing.T, images storage.ImageStore) *apiEnv {
	t.Helper()
	logger := zap.NewNop()
	store := memory.NewStore()
	pub := &recordingPublisher{}
	emitter := notify.NewEmitter(store, pub, logger)
	hub := realtime.NewHub(realtime.NewMemoryBroker(8), logger)

	router := NewRouter(Deps{
		Store:     store,
		Realtime:  realtime.NewHandler(hub, store, testSecret, realtime.Options{}, logger),
		Emitter:   emitter,
		Recorder:  audit.NewRecorder(store.AuditLogs, emitter, logger),
		Images:    images,
		JWTSecret: testSecret,
		TokenTTL:  time.Hour,
		Version:   "test",
		Logger:    logger,
	})
	return &apiEnv{store: store, pub: pub, router: router}
}

// user stores an active account and returns it with a valid token.
func (e *apiEnv) user(t *testing.T, role string) (*models.User, string) {
	t.Helper()
	existing, err := e.store.Users.List(context.Background())
	require.NoError(t, err)
	u, err := e.store.Users.Create(context.Background(), &models.User{
		FirstName: role,
		Email:     fmt.Sprintf("user%d@finca.test", len(existing)+1),
		Role:      role,
		Active:    true,
	})
	require.NoError(t, err)
	token, err := auth.GenerateToken(u.ID, u.Role, testSecret, time.Hour)
	require.NoError(t, err)
	return u, token
}

func (e *apiEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.send(req, token)
}

func (e *apiEnv) send(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *apiEnv) upload(t *testing.T, animalID int64, token, filename, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG fake image bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/animales/%d/imagen", animalID), &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.send(req, token)
}

func (e *apiEnv) createAnimal(t *testing.T, token, tag string) models.Animal {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/animales", token, animalBody(tag))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.Animal](t, w)
}

func (e *apiEnv) auditActions(t *testing.T) []string {
	t.Helper()
	logs, err := e.store.AuditLogs.List(context.Background(), models.AuditLogFilter{})
	require.NoError(t, err)
	out := make([]string, 0, len(logs))
	for _, l := range logs {
		out = append(out, l.Action)
	}
	return out
}

func animalBody(tag string) gin.H {
	return gin.H{
		"chapeta":             tag,
		"sexo":                "hembra",
		"fecha_nacimiento":    "2021-03-10",
		"raza":                "Holstein",
		"estado_reproductivo": "vacia",
		"estado_productivo":   "lactancia",
	}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestRegisterAndLogin(t *testing.T) {
	env := newAPIEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"nombre": "Ana", "email": "ana@finca.test", "password": "s3cretpass",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	reg := decode[authResponse](t, w)
	assert.NotEmpty(t, reg.Token)
	assert.Equal(t, models.RoleUser, reg.User.Role)
	assert.True(t, reg.User.Active)

	t.Run("duplicate email ignores case", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
			"nombre": "Ana", "email": "ANA@finca.test", "password": "s3cretpass",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("admin role cannot self register", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
			"nombre": "Eve", "email": "eve@finca.test", "password": "s3cretpass", "rol": models.RoleAdmin,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("short password", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
			"nombre": "Bo", "email": "bo@finca.test", "password": "short",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("login", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
			"email": "ana@finca.test", "password": "s3cretpass",
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		resp := decode[authResponse](t, w)

		claims, err := auth.ParseToken(resp.Token, testSecret)
		require.NoError(t, err)
		assert.Equal(t, reg.User.ID, claims.UserID)

		stored, err := env.store.Users.GetByID(context.Background(), reg.User.ID)
		require.NoError(t, err)
		assert.NotNil(t, stored.LastAccessAt)
	})

	t.Run("bad credentials", func(t *testing.T) {
		for _, body := range []gin.H{
			{"email": "ana@finca.test", "password": "wrong-password"},
			{"email": "nobody@finca.test", "password": "s3cretpass"},
		} {
			w := env.do(t, http.MethodPost, "/api/auth/login", "", body)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		}
	})

	t.Run("inactive account", func(t *testing.T) {
		u, err := env.store.Users.GetByID(context.Background(), reg.User.ID)
		require.NoError(t, err)
		u.Active = false
		_, err = env.store.Users.Update(context.Background(), u)
		require.NoError(t, err)

		w := env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
			"email": "ana@finca.test", "password": "s3cretpass",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAuthorization(t *testing.T) {
	env := newAPIEnv(t, nil)
	worker, workerToken := env.user(t, models.RoleUser)
	_, adminToken := env.user(t, models.RoleAdmin)

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/animales", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/animales", "garbage", nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/api/users", workerToken, nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, "/api/animales", workerToken, animalBody("ES-001")).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/api/logs", workerToken, nil).Code)

	w := env.do(t, http.MethodGet, "/api/users/me", workerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, worker.ID, decode[models.User](t, w).ID)

	w = env.do(t, http.MethodGet, "/api/users", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.User](t, w), 2)
}

func TestUserAdministration(t *testing.T) {
	env := newAPIEnv(t, nil)
	admin, adminToken := env.user(t, models.RoleAdmin)
	worker, _ := env.user(t, models.RoleUser)

	path := fmt.Sprintf("/api/users/%d", worker.ID)
	w := env.do(t, http.MethodPut, path, adminToken, gin.H{"rol": models.RoleOwner})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.RoleOwner, decode[models.User](t, w).Role)

	w = env.do(t, http.MethodPut, path, adminToken, gin.H{"rol": "capataz"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodDelete, fmt.Sprintf("/api/users/%d", admin.ID), adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodDelete, path, adminToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, path, adminToken, nil).Code)
}

func TestAnimalLifecycle(t *testing.T) {
	env := newAPIEnv(t, nil)
	admin, adminToken := env.user(t, models.RoleAdmin)
	_, workerToken := env.user(t, models.RoleUser)

	a := env.createAnimal(t, adminToken, "ES-001")
	require.NotNil(t, a.CreatedBy)
	assert.Equal(t, admin.ID, *a.CreatedBy)
	assert.JSONEq(t, `[]`, string(a.Health))
	assert.Equal(t, []int64{}, a.OffspringIDs)
	assert.Equal(t, []string{"animal_created"}, env.pub.types(realtime.ChannelAnimalUpdates))
	assert.Equal(t, []string{"animal_created"}, env.pub.types(realtime.AnimalChannel(a.ID)))

	t.Run("validation", func(t *testing.T) {
		dup := env.do(t, http.MethodPost, "/api/animales", adminToken, animalBody("ES-001"))
		assert.Equal(t, http.StatusConflict, dup.Code)

		noBirth := animalBody("ES-002")
		delete(noBirth, "fecha_nacimiento")
		assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/animales", adminToken, noBirth).Code)

		badSex := animalBody("ES-003")
		badSex["sexo"] = "otro"
		assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/animales", adminToken, badSex).Code)
	})

	t.Run("list filters", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/animales?sexo=hembra", workerToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode[[]models.Animal](t, w), 1)

		w = env.do(t, http.MethodGet, "/api/animales?sexo=macho", workerToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, decode[[]models.Animal](t, w))
	})

	path := fmt.Sprintf("/api/animales/%d", a.ID)
	body := animalBody("ES-001")
	body["raza"] = "Jersey"
	w := env.do(t, http.MethodPut, path, adminToken, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[models.Animal](t, w)
	assert.Equal(t, "Jersey", updated.Breed)
	require.NotNil(t, updated.ModifiedBy)
	assert.Equal(t, admin.ID, *updated.ModifiedBy)

	logs, err := env.store.AuditLogs.List(context.Background(), models.AuditLogFilter{Action: audit.ActionEdit})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Contains(t, string(logs[0].Changes), `"raza"`)
	assert.NotContains(t, string(logs[0].Changes), `"chapeta"`)
	assert.NotContains(t, string(logs[0].Changes), `"modificado_por"`)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, path, adminToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, path, workerToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, path, adminToken, nil).Code)

	assert.Equal(t, []string{audit.ActionDelete, audit.ActionEdit, audit.ActionCreate}, env.auditActions(t))
	assert.Equal(t,
		[]string{"animal_created", "animal_updated", "animal_deleted"},
		env.pub.types(realtime.ChannelAnimalUpdates))
	assert.Len(t, env.pub.types(realtime.ChannelAdminLogs), 3)
}

func TestAnimalImageUpload(t *testing.T) {
	images := &fakeImages{}
	env := newAPIEnv(t, images)
	_, adminToken := env.user(t, models.RoleAdmin)
	worker, workerToken := env.user(t, models.RoleUser)
	a := env.createAnimal(t, adminToken, "ES-010")

	w := env.upload(t, a.ID, workerToken, "vaca.png", "image/png")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[map[string]any](t, w)
	firstURL := "http://minio.test/herdstream/animales/ES-010_1.png"
	assert.Equal(t, firstURL, resp["url"])
	assert.Equal(t, "animales/ES-010_1.png", resp["file_name"])

	require.Len(t, images.uploads, 1)
	assert.Equal(t, worker.ID, images.uploads[0].UploadedBy)
	assert.Equal(t, "ES-010", images.uploads[0].AnimalTag)

	stored, err := env.store.Animals.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PhotoURL)
	assert.Equal(t, firstURL, *stored.PhotoURL)

	t.Run("replacing removes the previous object", func(t *testing.T) {
		w := env.upload(t, a.ID, workerToken, "vaca2.jpg", "image/jpeg")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, []string{firstURL}, images.deleted)
	})

	t.Run("rejects unsupported types", func(t *testing.T) {
		w := env.upload(t, a.ID, workerToken, "informe.pdf", "application/pdf")
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), storage.ErrUnsupportedType.Error())
	})

	t.Run("missing file", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/animales/%d/imagen", a.ID), strings.NewReader(""))
		req.Header.Set("Content-Type", "multipart/form-data; boundary=xyz")
		w := env.send(req, workerToken)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "No se envió ninguna imagen")
	})

	t.Run("unknown animal", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, env.upload(t, 999, workerToken, "vaca.png", "image/png").Code)
	})

	assert.Equal(t,
		[]string{audit.ActionImageUpdate, audit.ActionImageUpdate, audit.ActionCreate},
		env.auditActions(t))
}

func TestUploadWithoutStorage(t *testing.T) {
	env := newAPIEnv(t, nil)
	_, adminToken := env.user(t, models.RoleAdmin)
	a := env.createAnimal(t, adminToken, "ES-020")

	assert.Equal(t, http.StatusServiceUnavailable, env.upload(t, a.ID, adminToken, "vaca.png", "image/png").Code)
}

func TestDeleteAnimalImage(t *testing.T) {
	images := &fakeImages{}
	env := newAPIEnv(t, images)
	_, adminToken := env.user(t, models.RoleAdmin)
	a := env.createAnimal(t, adminToken, "ES-030")
	path := fmt.Sprintf("/api/animales/%d/imagen", a.ID)

	w := env.do(t, http.MethodDelete, path, adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "El animal no tiene imagen de perfil")

	require.Equal(t, http.StatusOK, env.upload(t, a.ID, adminToken, "vaca.png", "image/png").Code)

	t.Run("storage failure still clears the reference", func(t *testing.T) {
		images.deleteErr = errors.New("bucket unavailable")
		defer func() { images.deleteErr = nil }()

		w := env.do(t, http.MethodDelete, path, adminToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[map[string]string](t, w)
		assert.Equal(t, "bucket unavailable", resp["warning"])

		stored, err := env.store.Animals.GetByID(context.Background(), a.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.PhotoURL)
	})

	t.Run("deleting the animal removes its image", func(t *testing.T) {
		require.Equal(t, http.StatusOK, env.upload(t, a.ID, adminToken, "vaca.png", "image/png").Code)
		w := env.do(t, http.MethodDelete, fmt.Sprintf("/api/animales/%d", a.ID), adminToken, nil)
		require.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, []string{"http://minio.test/herdstream/animales/ES-030_2.png"}, images.deleted)
	})
}

func TestIncidents(t *testing.T) {
	env := newAPIEnv(t, nil)
	admin, adminToken := env.user(t, models.RoleAdmin)
	worker, workerToken := env.user(t, models.RoleUser)
	_, otherToken := env.user(t, models.RoleUser)
	a := env.createAnimal(t, adminToken, "ES-040")

	w := env.do(t, http.MethodPost, "/api/incidencias", workerToken, gin.H{
		"animal":          a.ID,
		"tipo":            "cojera",
		"descripcion":     "Cojea de la pata trasera",
		"fecha_deteccion": "2024-05-14",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	inc := decode[models.Incident](t, w)
	require.NotNil(t, inc.ReportedBy)
	assert.Equal(t, worker.ID, *inc.ReportedBy)

	alerts, err := env.store.Notifications.List(context.Background(), admin.ID)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.NotificationHealthAlert, alerts[0].Category)
	assert.Equal(t, "Nueva incidencia detectada: cojera en animal ES-040", alerts[0].Message)

	path := fmt.Sprintf("/api/incidencias/%d", inc.ID)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, path, workerToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, path, otherToken, nil).Code)

	w = env.do(t, http.MethodGet, "/api/incidencias", otherToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]models.Incident](t, w))

	w = env.do(t, http.MethodGet, "/api/incidencias", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Incident](t, w), 1)

	t.Run("rejects unknown animal and status", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/incidencias", workerToken, gin.H{
			"animal": 999, "tipo": "fiebre", "descripcion": "x", "fecha_deteccion": "2024-05-14",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = env.do(t, http.MethodPost, "/api/incidencias", workerToken, gin.H{
			"animal": a.ID, "tipo": "fiebre", "descripcion": "x", "fecha_deteccion": "2024-05-14", "estado": "olvidado",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestTreatmentVisibility(t *testing.T) {
	env := newAPIEnv(t, nil)
	_, adminToken := env.user(t, models.RoleAdmin)
	worker, workerToken := env.user(t, models.RoleUser)
	other, otherToken := env.user(t, models.RoleUser)
	a := env.createAnimal(t, adminToken, "ES-050")

	body := gin.H{
		"animal": a.ID, "fecha": "2024-05-14", "medicamento": "Oxitetraciclina",
		"dosis": "10ml", "duracion": "5 dias", "administrado_por": worker.ID,
	}
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, "/api/tratamientos", workerToken, body).Code)

	w := env.do(t, http.MethodPost, "/api/tratamientos", adminToken, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	tr := decode[models.Treatment](t, w)

	w = env.do(t, http.MethodGet, "/api/tratamientos", workerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Treatment](t, w), 1)

	w = env.do(t, http.MethodGet, "/api/tratamientos", otherToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]models.Treatment](t, w))

	t.Run("owner cannot reassign", func(t *testing.T) {
		body["administrado_por"] = other.ID
		body["dosis"] = "12ml"
		w := env.do(t, http.MethodPut, fmt.Sprintf("/api/tratamientos/%d", tr.ID), workerToken, body)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		got := decode[models.Treatment](t, w)
		assert.Equal(t, "12ml", got.Dose)
		require.NotNil(t, got.AdministeredBy)
		assert.Equal(t, worker.ID, *got.AdministeredBy)
	})
}

func TestEventsAndGroups(t *testing.T) {
	env := newAPIEnv(t, nil)
	_, token := env.user(t, models.RoleUser)

	w := env.do(t, http.MethodPost, "/api/eventos", token, gin.H{
		"titulo": "Visita veterinaria", "tipo": "visita",
		"fecha_inicio": "2030-06-02", "fecha_fin": "2030-06-01",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/eventos", token, gin.H{
		"titulo": "Visita veterinaria", "tipo": "visita",
		"fecha_inicio": "2030-06-01", "fecha_fin": "2030-06-02",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	group := gin.H{"nombre": "Lote A", "tipo": "produccion"}
	w = env.do(t, http.MethodPost, "/api/grupos", token, group)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, []int64{}, decode[models.Group](t, w).AnimalIDs)
	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodPost, "/api/grupos", token, group).Code)
}

func TestNotifications(t *testing.T) {
	env := newAPIEnv(t, nil)
	_, adminToken := env.user(t, models.RoleAdmin)
	worker, workerToken := env.user(t, models.RoleUser)
	_, otherToken := env.user(t, models.RoleOwner)

	w := env.do(t, http.MethodPost, "/api/notificaciones", adminToken, gin.H{
		"usuario": worker.ID, "mensaje": "Revisar bebederos",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	n := decode[models.Notification](t, w)
	assert.Equal(t, models.NotificationInfo, n.Category)
	assert.Equal(t, []string{realtime.TypeNotification}, env.pub.types(realtime.UserChannel(worker.ID)))

	w = env.do(t, http.MethodPost, "/api/notificaciones", adminToken, gin.H{"usuario": 999, "mensaje": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	path := fmt.Sprintf("/api/notificaciones/%d/read", n.ID)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPatch, path, otherToken, nil).Code)
	w = env.do(t, http.MethodPatch, path, workerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"id":%d,"visto":true}`, n.ID), w.Body.String())

	w = env.do(t, http.MethodPost, "/api/notificaciones/broadcast", adminToken, gin.H{"mensaje": "Corte de agua mañana"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 3, decode[map[string]any](t, w)["recipients"])
	assert.Equal(t, []string{realtime.TypeBroadcast}, env.pub.types(realtime.ChannelGeneralNotifications))

	w = env.do(t, http.MethodGet, "/api/notificaciones", workerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Notification](t, w), 2)

	w = env.do(t, http.MethodGet, "/api/notificaciones", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Notification](t, w), 4)
}

func TestAuditLogList(t *testing.T) {
	env := newAPIEnv(t, nil)
	_, adminToken := env.user(t, models.RoleAdmin)
	for _, tag := range []string{"ES-060", "ES-061", "ES-062"} {
		env.createAnimal(t, adminToken, tag)
	}

	w := env.do(t, http.MethodGet, "/api/logs?tipo_accion=crear&limit=2", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	logs := decode[[]models.AuditLog](t, w)
	require.Len(t, logs, 2)
	assert.Greater(t, logs[0].ID, logs[1].ID)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/logs?limit=-1", adminToken, nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/logs?usuario=abc", adminToken, nil).Code)
}

func TestHealth(t *testing.T) {
	logger := zap.NewNop()
	cases := []struct {
		name     string
		db       Pinger
		wantCode int
		wantKey  string
		wantVal  string
	}{
		{"memory store", nil, http.StatusOK, "database", "memory"},
		{"database down", failingPinger{}, http.StatusServiceUnavailable, "status", "error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/health", NewHealthHandler(tc.db, "test", logger).Check)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			require.Equal(t, tc.wantCode, w.Code)
			assert.Equal(t, tc.wantVal, decode[map[string]any](t, w)[tc.wantKey])
		})
	}
}

func TestDateAcceptsBothLayouts(t *testing.T) {
	var d struct {
		A Date  `json:"a"`
		B Date  `json:"b"`
		C *Date `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"2024-05-14","b":"2024-05-14T08:30:00Z","c":null}`), &d))
	assert.Equal(t, time.Date(2024, 5, 14, 0, 0, 0, 0, time.UTC), d.A.Time)
	assert.Equal(t, time.Date(2024, 5, 14, 8, 30, 0, 0, time.UTC), d.B.Time)
	assert.Nil(t, timePtr(d.C))

	assert.Error(t, json.Unmarshal([]byte(`{"a":"14/05/2024"}`), &d))
}
