package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapa-edu/mapa-server/internal/api"
	"github.com/mapa-edu/mapa-server/pkg/mapa"
	repomem "github.com/mapa-edu/mapa-server/pkg/mapa/repo/memory"
	memorystorage "github.com/mapa-edu/mapa-server/pkg/mapa/storage/memory"
)

type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return newTestServerAt(t, t.TempDir())
}

func newTestServerAt(t *testing.T, stagingDir string) *httptest.Server {
	t.Helper()

	repo := repomem.New()
	store := memorystorage.New()
	media, err := mapa.NewMediaPipeline(store, mapa.MediaConfig{
		StagingDir:    stagingDir,
		PublicBaseURL: "http://localhost:8080/media",
	})
	require.NoError(t, err)

	auth := mapa.NewAuthenticator(repo, "test-secret", time.Hour)
	svc, err := mapa.New(
		mapa.WithRepository(repo),
		mapa.WithMediaPipeline(media),
		mapa.WithAuthenticator(auth),
		mapa.WithBaseURL("http://localhost:8080"),
	)
	require.NoError(t, err)

	server := api.NewServer(svc, auth, media, store, "testing")
	ts := httptest.NewServer(server.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url, token string, body interface{}) (*http.Response, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

func registerAndLogin(t *testing.T, ts *httptest.Server) string {
	t.Helper()

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/users/create", "", map[string]string{
		"name":     "Teacher",
		"email":    "teacher@example.com",
		"password": "password1",
		"role":     "teacher",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, env := doJSON(t, http.MethodPost, ts.URL+"/api/auth/login", "", map[string]string{
		"email":    "teacher@example.com",
		"password": "password1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))
	require.NotEmpty(t, login.Token)
	return login.Token
}

func createSection(t *testing.T, ts *httptest.Server, token, title string) mapa.Section {
	t.Helper()

	resp, env := doJSON(t, http.MethodPost, ts.URL+"/api/sections", token, map[string]string{
		"title": title,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var section mapa.Section
	require.NoError(t, json.Unmarshal(env.Data, &section))
	return section
}

func createPostMultipart(t *testing.T, ts *httptest.Server, token, sectionSlug, title, fileBody string) (*http.Response, envelope) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("title", title))
	require.NoError(t, w.WriteField("description", "desc"))
	if fileBody != "" {
		part, err := w.CreateFormFile("content", "lesson.pdf")
		require.NoError(t, err)
		_, err = part.Write([]byte(fileBody))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/posts/create/"+sectionSlug, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp, env := doJSON(t, http.MethodGet, ts.URL+"/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", env.Message)
}

func TestAuthFlow(t *testing.T) {
	ts := newTestServer(t)

	t.Run("register validates payload", func(t *testing.T) {
		resp, env := doJSON(t, http.MethodPost, ts.URL+"/api/users/create", "", map[string]string{
			"name":     "X",
			"email":    "not-an-email",
			"password": "password1",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, env.Message, "email")

		resp, env = doJSON(t, http.MethodPost, ts.URL+"/api/users/create", "", map[string]string{
			"name":     "X",
			"email":    "x@example.com",
			"password": "short",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, env.Message, "password")
	})

	t.Run("full login cycle", func(t *testing.T) {
		token := registerAndLogin(t, ts)

		resp, env := doJSON(t, http.MethodGet, ts.URL+"/api/auth/current", token, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var user mapa.User
		require.NoError(t, json.Unmarshal(env.Data, &user))
		assert.Equal(t, "teacher@example.com", user.Email)

		resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/auth/logout", token, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		// The token is dead after logout.
		resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/auth/current", token, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/users/create", "", map[string]string{
			"name":     "Again",
			"email":    "teacher@example.com",
			"password": "password1",
		})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("wrong password is a bad request", func(t *testing.T) {
		resp, env := doJSON(t, http.MethodPost, ts.URL+"/api/auth/login", "", map[string]string{
			"email":    "teacher@example.com",
			"password": "wrong-one",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "email or password is wrong", env.Message)
	})

	t.Run("protected routes reject missing token", func(t *testing.T) {
		resp, env := doJSON(t, http.MethodGet, ts.URL+"/api/sections", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "Not authorized", env.Message)
	})
}

func TestContentFlow(t *testing.T) {
	ts := newTestServer(t)
	token := registerAndLogin(t, ts)

	section := createSection(t, ts, token, "Mathematics")
	assert.True(t, strings.HasPrefix(section.Slug, "mathematics-"))

	t.Run("duplicate section title conflicts", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/sections", token, map[string]string{
			"title": "Mathematics",
		})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("section fetch by slug", func(t *testing.T) {
		resp, env := doJSON(t, http.MethodGet, ts.URL+"/api/sections/"+section.Slug, token, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var got mapa.Section
		require.NoError(t, json.Unmarshal(env.Data, &got))
		assert.Equal(t, section.ID, got.ID)
	})

	t.Run("unknown section is 404", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/sections/ghost", token, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	var post mapa.Post
	t.Run("create post with file", func(t *testing.T) {
		resp, env := createPostMultipart(t, ts, token, section.Slug, "Fractions", "pdf bytes")
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		require.NoError(t, json.Unmarshal(env.Data, &post))
		assert.Contains(t, post.Content, "/media/posts/")

		// Section counter moved.
		resp2, env2 := doJSON(t, http.MethodGet, ts.URL+"/api/sections/"+section.Slug, token, nil)
		require.Equal(t, http.StatusOK, resp2.StatusCode)
		var got mapa.Section
		require.NoError(t, json.Unmarshal(env2.Data, &got))
		assert.Equal(t, 1, got.PostsCount)
	})

	t.Run("served media matches upload", func(t *testing.T) {
		key := mapa.PostAssetKey(post.AuthorID, post.Slug)
		resp, err := http.Get(ts.URL + "/media/" + key)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "pdf bytes", string(data))
	})

	t.Run("post details include section", func(t *testing.T) {
		resp, env := doJSON(t, http.MethodGet, ts.URL+"/api/posts/details/"+post.Slug, token, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var got mapa.Post
		require.NoError(t, json.Unmarshal(env.Data, &got))
		require.NotNil(t, got.Section)
		assert.Equal(t, section.ID, got.Section.ID)
	})

	t.Run("duplicate post title conflicts", func(t *testing.T) {
		resp, _ := createPostMultipart(t, ts, token, section.Slug, "Fractions", "")
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	var comment mapa.Comment
	t.Run("comment lifecycle", func(t *testing.T) {
		resp, env := doJSON(t, http.MethodPost, ts.URL+"/api/comments/create/"+post.Slug, token, map[string]string{
			"content": "great lesson",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		require.NoError(t, json.Unmarshal(env.Data, &comment))

		resp, env = doJSON(t, http.MethodPatch,
			fmt.Sprintf("%s/api/comments/update/%s", ts.URL, comment.ID), token, map[string]string{
				"content": "edited",
			})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, env = doJSON(t, http.MethodGet, ts.URL+"/api/comments/index/"+post.Slug, token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var comments []mapa.Comment
		require.NoError(t, json.Unmarshal(env.Data, &comments))
		require.Len(t, comments, 1)
		assert.Equal(t, "edited", comments[0].Content)
	})

	t.Run("delete post from wrong section is 404", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodDelete,
			fmt.Sprintf("%s/api/posts/wrong-section/%s", ts.URL, post.Slug), token, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("delete post removes asset", func(t *testing.T) {
		key := mapa.PostAssetKey(post.AuthorID, post.Slug)

		resp, _ := doJSON(t, http.MethodDelete,
			fmt.Sprintf("%s/api/posts/%s/%s", ts.URL, section.Slug, post.Slug), token, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		mediaResp, err := http.Get(ts.URL + "/media/" + key)
		require.NoError(t, err)
		mediaResp.Body.Close()
		assert.Equal(t, http.StatusNotFound, mediaResp.StatusCode)

		// Comment went with the post.
		resp, _ = doJSON(t, http.MethodGet,
			fmt.Sprintf("%s/api/comments/show/%s", ts.URL, comment.ID), token, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("delete section", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodDelete,
			fmt.Sprintf("%s/api/sections/%s", ts.URL, section.ID), token, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/sections/"+section.Slug, token, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestSubscriptionEndpoint(t *testing.T) {
	ts := newTestServer(t)
	token := registerAndLogin(t, ts)

	resp, env := doJSON(t, http.MethodPatch, ts.URL+"/api/users", token, map[string]string{
		"subscription": "pro",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var user mapa.User
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.Equal(t, mapa.SubscriptionPro, user.Subscription)

	resp, _ = doJSON(t, http.MethodPatch, ts.URL+"/api/users", token, map[string]string{
		"subscription": "platinum",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func uploadAvatar(t *testing.T, ts *httptest.Server, token, filename, fileBody string) (*http.Response, envelope) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("avatar", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(fileBody))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req, err := http.NewRequest(http.MethodPatch, ts.URL+"/api/users/avatars", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

func TestAvatarUpload(t *testing.T) {
	ts := newTestServer(t)
	token := registerAndLogin(t, ts)

	resp, env := uploadAvatar(t, ts, token, "face.png", "png bytes")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var data struct {
		AvatarURL string `json:"avatar_url"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Contains(t, data.AvatarURL, "/media/avatars/")
}

func TestAvatarUploadStagingFailure(t *testing.T) {
	staging := filepath.Join(t.TempDir(), "staging")
	ts := newTestServerAt(t, staging)
	token := registerAndLogin(t, ts)

	// Losing the staging directory makes the upload fail server-side,
	// not as a rejected payload.
	require.NoError(t, os.RemoveAll(staging))

	resp, env := uploadAvatar(t, ts, token, "face.png", "png bytes")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Something went wrong", env.Message)
}

func TestPostIndex(t *testing.T) {
	ts := newTestServer(t)
	token := registerAndLogin(t, ts)

	math := createSection(t, ts, token, "Mathematics")
	physics := createSection(t, ts, token, "Physics")

	resp, _ := createPostMultipart(t, ts, token, math.Slug, "Fractions", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = createPostMultipart(t, ts, token, physics.Slug, "Gravity", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	t.Run("lists posts across sections", func(t *testing.T) {
		resp, env := doJSON(t, http.MethodGet, ts.URL+"/api/posts", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var posts []mapa.Post
		require.NoError(t, json.Unmarshal(env.Data, &posts))
		require.Len(t, posts, 2)

		titles := []string{posts[0].Title, posts[1].Title}
		assert.Contains(t, titles, "Fractions")
		assert.Contains(t, titles, "Gravity")
	})

	t.Run("rejects missing token", func(t *testing.T) {
		resp, env := doJSON(t, http.MethodGet, ts.URL+"/api/posts", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "Not authorized", env.Message)
	})
}

func TestUserEndpoints(t *testing.T) {
	ts := newTestServer(t)
	token := registerAndLogin(t, ts)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/users/create", "", map[string]string{
		"name":     "Student",
		"email":    "student@example.com",
		"password": "password1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var users []mapa.User
	t.Run("lists users", func(t *testing.T) {
		resp, env := doJSON(t, http.MethodGet, ts.URL+"/api/users", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NoError(t, json.Unmarshal(env.Data, &users))
		require.Len(t, users, 2)
	})

	t.Run("fetches user by id", func(t *testing.T) {
		resp, env := doJSON(t, http.MethodGet, ts.URL+"/api/users/"+users[0].ID.String(), token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got mapa.User
		require.NoError(t, json.Unmarshal(env.Data, &got))
		assert.Equal(t, users[0].Email, got.Email)
	})

	t.Run("rejects malformed id", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/users/not-a-uuid", token, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown user is 404", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/users/"+uuid.NewString(), token, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestNotFoundEnvelope(t *testing.T) {
	ts := newTestServer(t)

	t.Run("root miss", func(t *testing.T) {
		resp, env := doJSON(t, http.MethodGet, ts.URL+"/nope", "", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "Not found", env.Message)
	})

	t.Run("api miss", func(t *testing.T) {
		resp, env := doJSON(t, http.MethodGet, ts.URL+"/api/nope", "", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "Not found", env.Message)
	})

	t.Run("mounted router miss", func(t *testing.T) {
		token := registerAndLogin(t, ts)
		resp, env := doJSON(t, http.MethodDelete, ts.URL+"/api/posts/only-one-segment-allowed/x/y", token, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "Not found", env.Message)
	})

	t.Run("wrong method", func(t *testing.T) {
		resp, env := doJSON(t, http.MethodDelete, ts.URL+"/health", "", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		assert.Equal(t, "Method not allowed", env.Message)
	})
}
