package httpservice

import "net/http"

import "github.com/gorilla/mux"
import "github.com/google/uuid"

import "github.com/sirgallo/clusterlist/pkg/logger"
import "github.com/sirgallo/clusterlist/pkg/telemetry"
import "github.com/sirgallo/clusterlist/pkg/utils"


//=========================================== HTTP Service


var Log = clog.NewCustomLog(NAME)

/*
	admin surface of the coordinator: enlistment, failure hints, recovery
	info updates, list reads and prometheus metrics

	every request gets a uuid request id for log correlation
*/

func NewHTTPService(opts *HTTPServiceOpts) *HTTPService {
	router := mux.NewRouter()

	httpService := &HTTPService{
		Router: router,
		Port: utils.NormalizePort(opts.Port),
		Coordinator: opts.Coordinator,
	}

	router.Use(requestIdMiddleware)

	router.HandleFunc(EnlistRoute, httpService.EnlistHandler).Methods(http.MethodPost)
	router.HandleFunc(HintServerDownRoute, httpService.HintServerDownHandler).Methods(http.MethodPost)
	router.HandleFunc(RecoveryInfoRoute, httpService.RecoveryInfoHandler).Methods(http.MethodPost)
	router.HandleFunc(ServerByIndexRoute, httpService.ServerByIndexHandler).Methods(http.MethodGet)
	router.HandleFunc(ServersRoute, httpService.ServersHandler).Methods(http.MethodGet)
	router.HandleFunc(CountsRoute, httpService.CountsHandler).Methods(http.MethodGet)
	router.HandleFunc(SyncRoute, httpService.SyncHandler).Methods(http.MethodPost)
	router.Handle(MetricsRoute, telemetry.MetricsHandler()).Methods(http.MethodGet)

	return httpService
}

/*
	Start HTTP Service
		start the server to begin listening for admin requests
*/

func (httpService *HTTPService) StartHTTPService() {
	Log.Info("admin http service starting up on port:", httpService.Port)

	srvErr := http.ListenAndServe(httpService.Port, httpService.Router)
	if srvErr != nil { Log.Fatal("unable to start admin http service:", srvErr.Error()) }
}

func requestIdMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestId := uuid.NewString()
		w.Header().Set("X-Request-Id", requestId)

		Log.Debug("request:", requestId, r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
