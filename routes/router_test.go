package routes

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cppla/quill/config"
	"github.com/cppla/quill/forms"
	"github.com/cppla/quill/models"
	"github.com/cppla/quill/storage"
	"github.com/cppla/quill/utils"
)

const testSecret = "router-test-secret"

type harness struct {
	t      *testing.T
	engine *gin.Engine
	db     *gorm.DB
	cfg    config.AppConfig
	media  *storage.Local
	now    time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	cfg := config.AppConfig{
		JWTSecret:          testSecret,
		GinMode:            "test",
		DatabaseDriver:     "sqlite",
		DatabaseURI:        "file:" + name + "?mode=memory&cache=shared",
		LogLevel:           "silent",
		RateLimitPerMinute: 1000,
		AllowedOrigins:     []string{"*"},
		PageCacheSeconds:   20,
		PostsPerPage:       10,
		SessionCookieName:  "quill_session",
		SessionTTLHours:    1,
		MediaURL:           "/media/",
		MaxImageSizeMB:     5,
	}
	db, err := config.OpenDatabase(cfg, models.All()...)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	h := &harness{t: t, db: db, cfg: cfg, now: time.Now()}
	h.media = storage.NewLocal(t.TempDir(), cfg.MediaURL)
	cache := utils.NewMemoryCacheWithClock(func() time.Time { return h.now })

	h.engine, err = SetupRouter(cfg, Deps{DB: db, Cache: cache, Media: h.media})
	require.NoError(t, err)
	return h
}

func (h *harness) user(name string) *models.User {
	h.t.Helper()
	hash, err := utils.HashPassword("password1")
	require.NoError(h.t, err)
	u := &models.User{Username: name, Email: name + "@example.com", PasswordHash: hash}
	require.NoError(h.t, h.db.Create(u).Error)
	return u
}

func (h *harness) group(slug string) *models.Group {
	h.t.Helper()
	g := &models.Group{Title: strings.ToUpper(slug), Slug: slug, Description: "about " + slug}
	require.NoError(h.t, h.db.Create(g).Error)
	return g
}

func (h *harness) post(author *models.User, group *models.Group, text string, at time.Time) *models.Post {
	h.t.Helper()
	p := &models.Post{Text: text, AuthorID: author.ID, PubDate: at}
	if group != nil {
		p.GroupID = &group.ID
	}
	require.NoError(h.t, h.db.Omit("Author", "Group", "Comments").Create(p).Error)
	return p
}

func (h *harness) do(req *http.Request, as *models.User) *httptest.ResponseRecorder {
	h.t.Helper()
	if as != nil {
		tok, err := utils.GenerateToken(testSecret, as.ID, as.Username, time.Hour)
		require.NoError(h.t, err)
		req.AddCookie(&http.Cookie{Name: h.cfg.SessionCookieName, Value: tok})
	}
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)
	return w
}

func (h *harness) get(path string, as *models.User) *httptest.ResponseRecorder {
	return h.do(httptest.NewRequest(http.MethodGet, path, nil), as)
}

func (h *harness) postForm(path string, as *models.User, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return h.do(req, as)
}

func (h *harness) postMultipart(path string, as *models.User, fields map[string]string, fileName string, file []byte) *httptest.ResponseRecorder {
	h.t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(h.t, mw.WriteField(k, v))
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("image", fileName)
		require.NoError(h.t, err)
		_, err = fw.Write(file)
		require.NoError(h.t, err)
	}
	require.NoError(h.t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return h.do(req, as)
}

func (h *harness) count(model interface{}) int64 {
	h.t.Helper()
	var n int64
	require.NoError(h.t, h.db.Model(model).Count(&n).Error)
	return n
}

func smallPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 3, 3))))
	return buf.Bytes()
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	w := h.get("/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestIndexPagination(t *testing.T) {
	h := newHarness(t)
	leo := h.user("leo")
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		h.post(leo, nil, fmt.Sprintf("post %02d", i), base.Add(time.Duration(i)*time.Minute))
	}

	first := h.get("/", nil).Body.String()
	assert.Contains(t, first, "post 11")
	assert.Contains(t, first, "post 02")
	assert.NotContains(t, first, "post 01")
	assert.Less(t, strings.Index(first, "post 11"), strings.Index(first, "post 10"))

	second := h.get("/?page=2", nil).Body.String()
	assert.Contains(t, second, "post 01")
	assert.Contains(t, second, "post 00")
	assert.NotContains(t, second, "post 02")

	assert.Contains(t, h.get("/?page=abc", nil).Body.String(), "post 11")
	assert.Contains(t, h.get("/?page=99", nil).Body.String(), "post 00")
	assert.Contains(t, h.get("/?page=0", nil).Body.String(), "post 00")
}

func TestIndexEmpty(t *testing.T) {
	h := newHarness(t)
	w := h.get("/?page=5", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "No posts yet.")
}

func TestIndexIsCachedUntilExpiry(t *testing.T) {
	h := newHarness(t)
	leo := h.user("leo")

	assert.NotContains(t, h.get("/", nil).Body.String(), "fresh post")
	h.post(leo, nil, "fresh post", time.Now())

	w := h.get("/", nil)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.NotContains(t, w.Body.String(), "fresh post")

	h.now = h.now.Add(21 * time.Second)
	assert.Contains(t, h.get("/", nil).Body.String(), "fresh post")
}

func TestGroupPosts(t *testing.T) {
	h := newHarness(t)
	leo := h.user("leo")
	cats := h.group("cats")
	h.post(leo, cats, "cat post", time.Now())
	h.post(leo, nil, "loose post", time.Now())

	assert.Equal(t, http.StatusNotFound, h.get("/group/dogs/", nil).Code)

	w := h.get("/group/cats/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cat post")
	assert.NotContains(t, w.Body.String(), "loose post")
}

func TestNewPostRequiresLogin(t *testing.T) {
	h := newHarness(t)

	w := h.get("/new/", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/auth/login/?next=/new/", w.Header().Get("Location"))

	w = h.postForm("/new/", nil, url.Values{"text": {"sneaky"}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, int64(0), h.count(&models.Post{}))
}

func TestCreatePostWithImage(t *testing.T) {
	h := newHarness(t)
	leo := h.user("leo")
	cats := h.group("cats")

	assert.Equal(t, http.StatusOK, h.get("/new/", leo).Code)

	w := h.postMultipart("/new/", leo, map[string]string{"text": "with picture", "group": fmt.Sprint(cats.ID)}, "cat.png", smallPNG(t))
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	var post models.Post
	require.NoError(t, h.db.First(&post).Error)
	assert.Equal(t, "with picture", post.Text)
	assert.Equal(t, leo.ID, post.AuthorID)
	require.NotNil(t, post.GroupID)
	assert.Equal(t, cats.ID, *post.GroupID)
	assert.True(t, strings.HasPrefix(post.Image, "/media/posts/"), post.Image)
	assert.True(t, strings.HasSuffix(post.Image, ".png"), post.Image)

	_, err := os.Stat(filepath.Join(h.media.Root(), filepath.FromSlash(strings.TrimPrefix(post.Image, "/media/"))))
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, h.get(post.Image, nil).Code)
}

func TestCreatePostRejectsInvalidInput(t *testing.T) {
	h := newHarness(t)
	leo := h.user("leo")

	w := h.postMultipart("/new/", leo, map[string]string{"text": "hi"}, "notes.txt", []byte("not an image at all"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), forms.MsgInvalidImage)

	w = h.postForm("/new/", leo, url.Values{"text": {"   "}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), forms.MsgRequired)

	w = h.postForm("/new/", leo, url.Values{"text": {"hi"}, "group": {"42"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Select a valid choice.")

	assert.Equal(t, int64(0), h.count(&models.Post{}))
}

func TestPostView(t *testing.T) {
	h := newHarness(t)
	leo := h.user("leo")
	ann := h.user("ann")
	p := h.post(leo, nil, "look at this", time.Now())
	require.NoError(t, h.db.Create(&models.Comment{PostID: p.ID, AuthorID: ann.ID, Text: "nice one"}).Error)

	w := h.get(fmt.Sprintf("/leo/%d/", p.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "look at this")
	assert.Contains(t, body, "nice one")
	assert.Contains(t, body, "Comments: 1")
	assert.Contains(t, body, "Posts: 1")

	assert.Equal(t, http.StatusNotFound, h.get(fmt.Sprintf("/ann/%d/", p.ID), nil).Code)
	assert.Equal(t, http.StatusNotFound, h.get("/leo/999/", nil).Code)
	assert.Equal(t, http.StatusNotFound, h.get("/leo/abc/", nil).Code)
}

func TestEditPost(t *testing.T) {
	h := newHarness(t)
	leo := h.user("leo")
	ann := h.user("ann")
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	p := h.post(leo, nil, "original", created)
	editURL := fmt.Sprintf("/leo/%d/edit/", p.ID)
	detailURL := fmt.Sprintf("/leo/%d/", p.ID)

	w := h.get(editURL, nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/auth/login/?next="+editURL, w.Header().Get("Location"))

	w = h.get(editURL, ann)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, detailURL, w.Header().Get("Location"))

	w = h.postForm(editURL, ann, url.Values{"text": {"hijacked"}})
	assert.Equal(t, detailURL, w.Header().Get("Location"))

	w = h.get(editURL, leo)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "original")

	w = h.postForm(editURL, leo, url.Values{"text": {"edited"}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, detailURL, w.Header().Get("Location"))

	var got models.Post
	require.NoError(t, h.db.First(&got, p.ID).Error)
	assert.Equal(t, "edited", got.Text)
	assert.Equal(t, leo.ID, got.AuthorID)
	assert.True(t, created.Equal(got.PubDate.UTC()), got.PubDate)

	w = h.postForm(editURL, leo, url.Values{"text": {""}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), forms.MsgRequired)

	assert.Equal(t, http.StatusNotFound, h.get("/leo/999/edit/", leo).Code)
}

func TestEditPostReplacesAndClearsImage(t *testing.T) {
	h := newHarness(t)
	leo := h.user("leo")
	p := h.post(leo, nil, "text", time.Now())
	editURL := fmt.Sprintf("/leo/%d/edit/", p.ID)

	w := h.postMultipart(editURL, leo, map[string]string{"text": "text"}, "a.png", smallPNG(t))
	require.Equal(t, http.StatusFound, w.Code)
	var got models.Post
	require.NoError(t, h.db.First(&got, p.ID).Error)
	require.NotEmpty(t, got.Image)
	onDisk := filepath.Join(h.media.Root(), filepath.FromSlash(strings.TrimPrefix(got.Image, "/media/")))

	w = h.postMultipart(editURL, leo, map[string]string{"text": "text", "image-clear": "on"}, "", nil)
	require.Equal(t, http.StatusFound, w.Code)
	require.NoError(t, h.db.First(&got, p.ID).Error)
	assert.Empty(t, got.Image)
	_, err := os.Stat(onDisk)
	assert.True(t, os.IsNotExist(err))
}

func TestAddComment(t *testing.T) {
	h := newHarness(t)
	leo := h.user("leo")
	ann := h.user("ann")
	p := h.post(leo, nil, "discuss", time.Now())
	commentURL := fmt.Sprintf("/leo/%d/comment/", p.ID)
	detailURL := fmt.Sprintf("/leo/%d/", p.ID)

	w := h.postForm(commentURL, nil, url.Values{"text": {"anon"}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/auth/login/?next="+commentURL, w.Header().Get("Location"))

	w = h.postForm(commentURL, ann, url.Values{"text": {"great"}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, detailURL, w.Header().Get("Location"))

	w = h.postForm(commentURL, ann, url.Values{"text": {"  "}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, detailURL, w.Header().Get("Location"))

	var comments []models.Comment
	require.NoError(t, h.db.Find(&comments).Error)
	require.Len(t, comments, 1)
	assert.Equal(t, "great", comments[0].Text)
	assert.Equal(t, ann.ID, comments[0].AuthorID)
	assert.Equal(t, p.ID, comments[0].PostID)

	assert.Equal(t, http.StatusNotFound, h.postForm("/leo/999/comment/", ann, url.Values{"text": {"x"}}).Code)
}

func TestFollowAndUnfollow(t *testing.T) {
	h := newHarness(t)
	leo := h.user("leo")
	ann := h.user("ann")

	w := h.get("/leo/follow/", nil)
	assert.Equal(t, "/auth/login/?next=/leo/follow/", w.Header().Get("Location"))

	for i := 0; i < 2; i++ {
		w = h.get("/leo/follow/", ann)
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/leo/", w.Header().Get("Location"))
	}
	assert.Equal(t, int64(1), h.count(&models.Follow{}))

	h.get("/leo/follow/", leo)
	assert.Equal(t, int64(1), h.count(&models.Follow{}))

	body := h.get("/leo/", ann).Body.String()
	assert.Contains(t, body, "Followers: 1")
	assert.Contains(t, body, "/leo/unfollow/")

	w = h.get("/leo/unfollow/", ann)
	assert.Equal(t, "/leo/", w.Header().Get("Location"))
	assert.Equal(t, int64(0), h.count(&models.Follow{}))

	w = h.get("/leo/unfollow/", ann)
	assert.Equal(t, http.StatusFound, w.Code)

	assert.Equal(t, http.StatusNotFound, h.get("/nobody/follow/", ann).Code)
	assert.Equal(t, http.StatusNotFound, h.get("/nobody/unfollow/", ann).Code)
}

func TestFollowFeed(t *testing.T) {
	h := newHarness(t)
	leo := h.user("leo")
	bob := h.user("bob")
	ann := h.user("ann")
	h.post(leo, nil, "from leo", time.Now())
	h.post(bob, nil, "from bob", time.Now())

	assert.Equal(t, http.StatusFound, h.get("/follow/", nil).Code)

	h.get("/leo/follow/", ann)
	body := h.get("/follow/", ann).Body.String()
	assert.Contains(t, body, "from leo")
	assert.NotContains(t, body, "from bob")

	assert.Contains(t, h.get("/follow/", bob).Body.String(), "Nothing here yet.")
}

func TestProfile(t *testing.T) {
	h := newHarness(t)
	leo := h.user("leo")
	h.post(leo, nil, "first", time.Now())
	h.post(leo, nil, "second", time.Now())

	assert.Equal(t, http.StatusNotFound, h.get("/nobody/", nil).Code)

	w := h.get("/leo/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Posts: 2")
	assert.Contains(t, body, "first")
	assert.NotContains(t, body, "/leo/follow/")
}

func TestErrorPages(t *testing.T) {
	h := newHarness(t)
	h.engine.GET("/explode/", func(ctx *gin.Context) { panic("boom") })

	w := h.get("/no/such/page/here/", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Page not found")

	w = h.get("/explode/", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Server error")

	sqlDB, err := h.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
	w = h.get("/leo/", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Server error")
}

func TestSignupLoginLogout(t *testing.T) {
	h := newHarness(t)

	w := h.postForm("/auth/signup/", nil, url.Values{
		"username": {"newbie"}, "email": {"n@example.com"},
		"password": {"hunter22"}, "password2": {"hunter22"},
	})
	require.Equal(t, http.StatusFound, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	session := cookies[0]

	req := httptest.NewRequest(http.MethodGet, "/new/", nil)
	req.AddCookie(session)
	assert.Equal(t, http.StatusOK, h.do(req, nil).Code)

	w = h.postForm("/auth/signup/", nil, url.Values{
		"username": {"newbie"}, "password": {"hunter22"}, "password2": {"hunter22"},
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "already exists")

	req = httptest.NewRequest(http.MethodGet, "/auth/logout/", nil)
	req.AddCookie(session)
	assert.Equal(t, http.StatusFound, h.do(req, nil).Code)

	req = httptest.NewRequest(http.MethodGet, "/new/", nil)
	req.AddCookie(session)
	assert.Equal(t, http.StatusFound, h.do(req, nil).Code)

	w = h.postForm("/auth/login/", nil, url.Values{"username": {"newbie"}, "password": {"wrong-one"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Please enter a correct username and password.")

	w = h.postForm("/auth/login/", nil, url.Values{"username": {"newbie"}, "password": {"hunter22"}, "next": {"/new/"}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/new/", w.Header().Get("Location"))

	w = h.postForm("/auth/login/", nil, url.Values{"username": {"newbie"}, "password": {"hunter22"}, "next": {"https://evil.example/"}})
	assert.Equal(t, "/", w.Header().Get("Location"))

	var u models.User
	require.NoError(t, h.db.Where("username = ?", "newbie").First(&u).Error)
	assert.NotEqual(t, "hunter22", u.PasswordHash)
}
