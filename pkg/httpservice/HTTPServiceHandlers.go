package httpservice

import "encoding/json"
import "errors"
import "net/http"
import "strconv"

import "github.com/gorilla/mux"

import "github.com/sirgallo/clusterlist/pkg/coordinator"
import "github.com/sirgallo/clusterlist/pkg/server"
import "github.com/sirgallo/clusterlist/pkg/utils"


//=========================================== HTTP Service Handlers


func (httpService *HTTPService) EnlistHandler(w http.ResponseWriter, r *http.Request) {
	var req EnlistRequest

	decodeErr := json.NewDecoder(r.Body).Decode(&req)
	if decodeErr != nil {
		writeError(w, http.StatusBadRequest, decodeErr)
		return
	}

	serverId, enlistErr := httpService.Coordinator.EnlistServer(req.ReplacesId, req.Services, req.ReadSpeed, req.ServiceLocator)
	if enlistErr != nil {
		writeError(w, http.StatusInternalServerError, enlistErr)
		return
	}

	writeResponse(w, http.StatusOK, EnlistResponse{ ServerId: serverId })
}

func (httpService *HTTPService) HintServerDownHandler(w http.ResponseWriter, r *http.Request) {
	var req HintServerDownRequest

	decodeErr := json.NewDecoder(r.Body).Decode(&req)
	if decodeErr != nil {
		writeError(w, http.StatusBadRequest, decodeErr)
		return
	}

	down, hintErr := httpService.Coordinator.HintServerDown(req.ServerId)
	if hintErr != nil {
		writeError(w, http.StatusInternalServerError, hintErr)
		return
	}

	writeResponse(w, http.StatusOK, HintServerDownResponse{ Down: down })
}

func (httpService *HTTPService) RecoveryInfoHandler(w http.ResponseWriter, r *http.Request) {
	var req RecoveryInfoRequest

	decodeErr := json.NewDecoder(r.Body).Decode(&req)
	if decodeErr != nil {
		writeError(w, http.StatusBadRequest, decodeErr)
		return
	}

	setErr := httpService.Coordinator.SetMasterRecoveryInfo(req.ServerId, req.MasterRecoveryInfo)
	if setErr != nil {
		status := http.StatusInternalServerError
		if errors.Is(setErr, coordinator.ErrUnknownServer) { status = http.StatusNotFound }

		writeError(w, status, setErr)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (httpService *HTTPService) ServersHandler(w http.ResponseWriter, r *http.Request) {
	list := httpService.Coordinator.Serialize(server.MasterService | server.BackupService)
	writeResponse(w, http.StatusOK, list)
}

func (httpService *HTTPService) ServerByIndexHandler(w http.ResponseWriter, r *http.Request) {
	variables := mux.Vars(r)

	index, parseErr := strconv.Atoi(variables["index"])
	if parseErr != nil {
		writeError(w, http.StatusBadRequest, parseErr)
		return
	}

	entry, getErr := httpService.Coordinator.GetByIndex(index)
	if getErr != nil {
		writeError(w, http.StatusNotFound, getErr)
		return
	}

	if entry == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeResponse(w, http.StatusOK, entry)
}

func (httpService *HTTPService) CountsHandler(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, http.StatusOK, CountsResponse{
		Masters: httpService.Coordinator.MasterCount(),
		Backups: httpService.Coordinator.BackupCount(),
	})
}

func (httpService *HTTPService) SyncHandler(w http.ResponseWriter, r *http.Request) {
	httpService.Coordinator.Sync()
	w.WriteHeader(http.StatusNoContent)
}


//========================================== helper methods


func writeResponse [T any](w http.ResponseWriter, status int, payload T) {
	encoded, encodeErr := utils.EncodeStructToBytes[T](payload)
	if encodeErr != nil {
		writeError(w, http.StatusInternalServerError, encodeErr)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(encoded)
}

func writeError(w http.ResponseWriter, status int, err error) {
	encoded, _ := utils.EncodeStructToBytes[ErrorResponse](ErrorResponse{ Error: err.Error() })

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(encoded)
}
