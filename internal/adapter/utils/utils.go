package utils

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var once sync.Once
var router *chi.Mux

func GetNewUUID() string {
	return uuid.New().String()
}

type RouterClient struct {
	Router *chi.Mux
}

func GetChiURLParam(request *http.Request, key string) string {
	return chi.URLParam(request, key)
}

// GetRouter returns the shared router. A handler panic becomes a 500 instead of
// killing the connection.
func GetRouter() RouterClient {
	once.Do(func() {
		router = chi.NewRouter()
		router.Use(chimiddleware.Recoverer)
		router.NotFound(jsonStatus(http.StatusNotFound))
		router.MethodNotAllowed(jsonStatus(http.StatusMethodNotAllowed))
		//register prometheus
		router.Handle("/metrics", promhttp.Handler())
	})

	return RouterClient{Router: router}
}

// jsonStatus answers unrouted requests in the same error shape the handlers use.
func jsonStatus(code int) http.HandlerFunc {
	body := fmt.Sprintf(`{"id":"","result":{"status":"Error"},"error":{"code":%d,"message":%q,"can_retry":false}}`+"\n", code, http.StatusText(code))
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(body))
	}
}
