package handler

import (
	"bytes"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luwei/internal/catalog/models"
	"luwei/internal/catalog/service"
	"luwei/internal/catalog/store"
	"luwei/pkg/testutil"
)

const operatorHeader = "X-Test-Operator"

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	menu := store.NewInMemory(
		&models.Product{ID: "wing6", Name: "滷雞翅 (6隻)", Price: decimal.NewFromInt(120), Image: "/w.jpg", IsAvailable: true},
		&models.Product{ID: "sold-out-item", Name: "豬血糕", Price: decimal.NewFromInt(30), Image: "/p.jpg", IsAvailable: false},
	)
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	operatorOnly := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get(operatorHeader) == "" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
	r := chi.NewRouter()
	New(service.New(menu), logger, operatorOnly).Register(r)
	return r
}

func TestFetchMealsHidesUnavailable(t *testing.T) {
	router := newRouter(t)
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, method, "/meal/fetch-meals", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		body := testutil.UnmarshalResponse[MealsResponse](t, rr)
		require.Len(t, body.Meals, 1)
		assert.Equal(t, "wing6", body.Meals[0].ID)
		assert.Equal(t, 120.0, body.Meals[0].Price)
	}
}

func TestUpsertMeals(t *testing.T) {
	router := newRouter(t)

	t.Run("operator only", func(t *testing.T) {
		req := testutil.NewRequestWithBody(t, http.MethodPost, "/meal/add-meals", `[]`)
		assert.Equal(t, http.StatusForbidden, testutil.DoRequest(router, req).Code)
	})

	t.Run("bare array", func(t *testing.T) {
		req := testutil.NewRequestWithBody(t, http.MethodPost, "/meal/add-meals",
			`[{"id":"egg","name":"滷蛋","description":"溏心蛋","price":15,"image":"/egg.jpg"}]`)
		req.Header.Set(operatorHeader, "1")
		rr := testutil.DoRequest(router, req)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		body := testutil.UnmarshalResponse[MealsResponse](t, rr)
		require.Len(t, body.Meals, 1)
		assert.True(t, body.Meals[0].IsAvailable)
	})

	t.Run("wrapped object edits availability", func(t *testing.T) {
		req := testutil.NewRequestWithBody(t, http.MethodPost, "/meal/edit-meals",
			`{"meals":[{"id":"wing6","name":"滷雞翅 (6隻)","price":"130","image":"/w.jpg","isAvailable":false}]}`)
		req.Header.Set(operatorHeader, "1")
		rr := testutil.DoRequest(router, req)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

		menu := testutil.UnmarshalResponse[MealsResponse](t,
			testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/meal/fetch-meals", nil)))
		for _, m := range menu.Meals {
			assert.NotEqual(t, "wing6", m.ID)
		}
	})

	t.Run("invalid meal", func(t *testing.T) {
		req := testutil.NewRequestWithBody(t, http.MethodPost, "/meal/add-meals",
			`[{"id":"egg","name":"滷蛋","price":0,"image":"/egg.jpg"}]`)
		req.Header.Set(operatorHeader, "1")
		testutil.AssertStatusAndError(t, testutil.DoRequest(router, req), http.StatusBadRequest, "validation_error")
	})

	t.Run("not json", func(t *testing.T) {
		req := testutil.NewRequestWithBody(t, http.MethodPost, "/meal/add-meals", `meals please`)
		req.Header.Set(operatorHeader, "1")
		testutil.AssertStatusAndError(t, testutil.DoRequest(router, req), http.StatusBadRequest, "bad_request")
	})
}
