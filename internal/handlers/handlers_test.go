package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doulitsa/internal/apperr"
	"doulitsa/internal/models"
	"doulitsa/internal/services"
)

type delivered struct {
	template string
	replyTo  string
	data     any
}

type fakeMailer struct {
	admin []delivered
}

func (m *fakeMailer) Deliver(string, string, any) {}

func (m *fakeMailer) DeliverAdmin(template, replyTo string, data any) {
	m.admin = append(m.admin, delivered{template: template, replyTo: replyTo, data: data})
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) apperr.ActionResult {
	t.Helper()
	var res apperr.ActionResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	return res
}

func TestWriteErrorHidesInternalCause(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)

	writeError(rec, req, errors.New("dial tcp 10.0.0.3:3306: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	res := decodeResult(t, rec)
	assert.False(t, res.Success)
	assert.Equal(t, apperr.MsgInternal, res.Message)
	assert.NotContains(t, rec.Body.String(), "10.0.0.3")
}

func TestWriteErrorValidationFields(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/x", nil)

	writeError(rec, req, apperr.Validation(map[string]string{"title": "Το πεδίο είναι υποχρεωτικό"}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	res := decodeResult(t, rec)
	assert.Equal(t, apperr.MsgValidation, res.Message)
	assert.Equal(t, "Το πεδίο είναι υποχρεωτικό", res.Errors["title"])
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"token":"a","admin":true}`))

	var dst struct {
		Token string `json:"token"`
	}
	assert.False(t, decodeJSON(rec, req, &dst))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDecodeJSONAllowsEmptyBody(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/x", http.NoBody)

	var dst models.RefreshRequest
	assert.True(t, decodeJSON(rec, req, &dst))
	assert.Empty(t, dst.RefreshToken)
}

func TestIDParam(t *testing.T) {
	cases := []struct {
		query string
		want  int64
		ok    bool
	}{
		{":id=42", 42, true},
		{"id=7", 7, true},
		{":id=0", 0, false},
		{":id=abc", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x?"+tc.query, nil)
		got, ok := idParam(rec, req, "id")
		assert.Equal(t, tc.ok, ok, tc.query)
		assert.Equal(t, tc.want, got, tc.query)
		if !tc.ok {
			assert.Equal(t, http.StatusBadRequest, rec.Code, tc.query)
		}
	}
}

func TestQueryBool(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x?online=true&verified=maybe", nil)
	require.NotNil(t, queryBool(req, "online"))
	assert.True(t, *queryBool(req, "online"))
	assert.Nil(t, queryBool(req, "verified"))
	assert.Nil(t, queryBool(req, "missing"))
}

func TestServiceFilterFromQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/services?category=graphistiki&price_min=20.5&online=1&page=2&limit=10&search=+logo+", nil)
	f := serviceFilter(req)
	assert.Equal(t, "graphistiki", f.Category)
	assert.Equal(t, 20.5, f.PriceMin)
	require.NotNil(t, f.Online)
	assert.True(t, *f.Online)
	assert.Equal(t, 2, f.Page)
	assert.Equal(t, 10, f.Limit)
	assert.Equal(t, "logo", f.Search)
}

func TestMustUserWithoutUser(t *testing.T) {
	h := &UserHandler{}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)

	h.Me(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, apperr.MsgUnauthorized, decodeResult(t, rec).Message)
}

func TestCurrentUserRoundTrip(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := CurrentUser(req.Context())
	assert.False(t, ok)

	ctx := WithUser(req.Context(), models.User{ID: 5, Role: models.RoleFreelancer})
	u, ok := CurrentUser(ctx)
	assert.True(t, ok)
	assert.Equal(t, int64(5), u.ID)
}

func TestSignUpValidationErrors(t *testing.T) {
	h := &UserHandler{Service: &services.UserService{}}
	body := `{"email":"not-an-email","username":"ab","display_name":"Μ","password":"123"}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader(body))

	h.SignUp(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	res := decodeResult(t, rec)
	assert.False(t, res.Success)
	assert.Contains(t, res.Errors, "email")
	assert.Contains(t, res.Errors, "username")
	assert.Contains(t, res.Errors, "display_name")
	assert.Contains(t, res.Errors, "password")
}

func TestContactForwardsToAdmin(t *testing.T) {
	mailer := &fakeMailer{}
	h := &ComplaintHandler{ContactService: &services.ContactService{Mail: mailer}}
	body := `{"name":"Ελένη","email":"eleni@example.gr","subject":"Ερώτηση","message":"Πώς γίνεται η επαλήθευση προφίλ;"}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/contact", strings.NewReader(body))

	h.Contact(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	res := decodeResult(t, rec)
	assert.True(t, res.Success)
	assert.Equal(t, services.MsgContactReceived, res.Message)
	require.Len(t, mailer.admin, 1)
	assert.Equal(t, "eleni@example.gr", mailer.admin[0].replyTo)
}

func TestCategoryHandlerUnknownLevel(t *testing.T) {
	h := &CategoryHandler{}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/taxonomy/tags?:level=tags", strings.NewReader(`{}`))

	h.Create(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func multipartRequest(t *testing.T, fields map[string]string, files map[string][]byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, data := range files {
		part, err := mw.CreateFormFile("images", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/me/services", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestServiceFormMultipart(t *testing.T) {
	req := multipartRequest(t,
		map[string]string{
			"data":        `{"title":"Σχεδιασμός λογοτύπου","price":50,"keep_images":["old.jpg"]}`,
			"keep_images": `["a.jpg","b.jpg"]`,
		},
		map[string][]byte{"logo.png": []byte("\x89PNG\r\n\x1a\n")},
	)
	rec := httptest.NewRecorder()

	form, uploads, ok := serviceForm(rec, req)

	require.True(t, ok, rec.Body.String())
	assert.Equal(t, "Σχεδιασμός λογοτύπου", form.Title)
	assert.Equal(t, 50.0, form.Price)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, form.KeepImages)
	require.Len(t, uploads, 1)
	assert.Equal(t, "logo.png", uploads[0].Name)
}

func TestServiceFormJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/me/services", strings.NewReader(`{"title":"Μετάφραση κειμένων","keep_images":["x.jpg"]}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	form, uploads, ok := serviceForm(rec, req)

	require.True(t, ok)
	assert.Empty(t, uploads)
	assert.Equal(t, []string{"x.jpg"}, form.KeepImages)
}

func TestGatherStringsFromForm(t *testing.T) {
	form := &multipart.Form{Value: map[string][]string{
		"keep_images[]": {`"quoted.jpg"`, "plain.jpg", "", "undefined"},
	}}
	values, ok, err := gatherStringsFromForm(form, "keep_images", "keep_images[]")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"quoted.jpg", "plain.jpg"}, values)

	_, _, err = gatherStringsFromForm(&multipart.Form{Value: map[string][]string{"keep_images": {"[broken"}}}, "keep_images")
	assert.Error(t, err)
}
