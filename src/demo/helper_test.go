package demo

import (
	"bytes"
	"context"
	stdimage "image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"depthdemo-server-go/src/configs"
	"depthdemo-server-go/src/core/session"
	"depthdemo-server-go/src/core/utils"
	"depthdemo-server-go/src/recorder"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const testPassword = "letmein"

func solidPNG(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := stdimage.NewRGBA(stdimage.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// testEnv 一个完整注册了路由的演示服务
type testEnv struct {
	service *DefaultDemoService
	engine  *gin.Engine
	root    string
}

func newTestEnv(t *testing.T, mutate func(cfg *configs.Config), index *recorder.GormIndex) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	files := map[string][]byte{
		"primary.png": solidPNG(t, 8, 4, color.RGBA{255, 255, 255, 255}),
		"depth.png":   solidPNG(t, 8, 4, color.RGBA{0, 0, 0, 255}),
		"ev.png":      solidPNG(t, 8, 4, color.RGBA{100, 100, 100, 255}),
	}
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0644))
	}

	cfg := &configs.Config{}
	cfg.SetDefaults()
	cfg.Server.Password = testPassword
	cfg.Server.TokenSecret = "test-secret"
	cfg.Recorder.Enabled = true
	cfg.Recorder.Root = filepath.Join(dir, "tests")
	cfg.Images.Sets = []configs.ImageSetConfig{
		{
			Name:    "Flatiron Image",
			Primary: filepath.Join(dir, "primary.png"),
			Depth:   filepath.Join(dir, "depth.png"),
			EV:      filepath.Join(dir, "ev.png"),
		},
		{
			Name:    "Broken Set",
			Primary: filepath.Join(dir, "missing.png"),
			Depth:   filepath.Join(dir, "depth.png"),
		},
	}
	if mutate != nil {
		mutate(cfg)
	}

	logger, err := utils.NewTestLogger(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { logger.Close() })

	service, err := NewDefaultDemoService(cfg, logger, index)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	engine := gin.New()
	require.NoError(t, service.Start(ctx, engine, engine.Group("/api")))

	return &testEnv{service: service, engine: engine, root: cfg.Recorder.Root}
}

func (e *testEnv) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil), cookies...)
}

func (e *testEnv) postForm(path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req, cookies...)
}

func (e *testEnv) postMultipart(t *testing.T, path string, fields map[string]string, files map[string][]byte, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for field, data := range files {
		part, err := w.CreateFormFile(field, field+".png")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return e.do(req, cookies...)
}

// login 登录并返回token cookie
func (e *testEnv) login(t *testing.T) *http.Cookie {
	t.Helper()
	rec := e.postForm("/login", url.Values{"password": {testPassword}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	return tokenCookieFrom(t, rec)
}

func tokenCookieFrom(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == tokenCookie {
			return c
		}
	}
	t.Fatalf("response has no %s cookie", tokenCookie)
	return nil
}

func submitForm() url.Values {
	return url.Values{
		"brightness":        {"10"},
		"ev":                {"Yes"},
		"focus_coordinates": {"10\n20"},
		"lens_simulation":   {"thin lens"},
		"depth_of_field":    {"shallow"},
		"fstop":             {"f/2.8"},
		"image_format":      {"jpg"},
		"depth_format":      {"png"},
	}
}

func newBearerRequest(path, token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

// sessionFor 根据cookie中的token找到服务端会话
func (e *testEnv) sessionFor(t *testing.T, cookie *http.Cookie) *session.Session {
	t.Helper()
	ok, id, err := e.service.authToken.VerifyToken(cookie.Value)
	require.NoError(t, err)
	require.True(t, ok)
	sess, err := e.service.sessions.Get(id)
	require.NoError(t, err)
	return sess
}
