package monitoring

import (
	"errors"
	"net/http"

	"checkin-system/internal/logging"

	"github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func newMetricsRouter() *echo.Echo {
	e := echo.New()
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return e
}

// StartServer serves /metrics and /healthz on their own port. Callers shut it
// down with srv.Shutdown.
func StartServer(port string) *http.Server {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: newMetricsRouter(),
	}

	go func() {
		logging.Info().Str("port", port).Msg("metrics server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("metrics server error")
		}
	}()

	return srv
}
