package customHttpClient

import (
	"net/http"
	"sync"

	"github.com/akolanti/FinDocAPI/internal/config"
)

var (
	customTransport = &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
	}
	client *http.Client
	once   sync.Once
)

// Client returns the shared pooled client used for outbound OCR calls.
func Client() *http.Client {
	once.Do(func() {
		client = &http.Client{
			Transport: customTransport,
			Timeout:   config.OCRRequestTimeout,
		}
	})
	return client
}
