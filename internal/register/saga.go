package register

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/schoolpass/registrator/internal/backend"
	"github.com/schoolpass/registrator/internal/isapi"
	"github.com/schoolpass/registrator/internal/logging"
	"github.com/schoolpass/registrator/internal/store"
)

const expiredCredentialsMessage = "Device credentials have expired"

// DeviceResult is the per-terminal outcome of one registration. UserCreate
// and FaceUpload are nil for steps that were never reached.
type DeviceResult struct {
	DeviceID   string                 `json:"deviceId"`
	DeviceName string                 `json:"deviceName"`
	Connection isapi.ConnectionResult `json:"connection"`
	UserCreate *isapi.ActionResult    `json:"userCreate,omitempty"`
	FaceUpload *isapi.ActionResult    `json:"faceUpload,omitempty"`
}

// Result is a completed registration.
type Result struct {
	EmployeeNo     string         `json:"employeeNo"`
	ProvisioningID string         `json:"provisioningId,omitempty"`
	Results        []DeviceResult `json:"results"`
}

// committedDevice is one terminal that fully accepted the student and must
// be cleaned up if a later device fails.
type committedDevice struct {
	device           store.Device
	backendDeviceID  string
	externalDeviceID string
	deviceName       string
	deviceLocation   string
}

type deviceOutcome struct {
	results        []DeviceResult
	committed      []committedDevice
	abortError     string
	devicesChanged bool
}

// Register runs the full saga against the stored device list. The first
// device failure halts the walk; devices that already accepted the student
// are rolled back and the provisioning record is finalized as failed.
func Register(st *store.Store, options Options) (Result, error) {
	if len(options.FaceImageBase64) > (isapi.MaxFaceImageBytes*4/3)+256 {
		return Result{}, fmt.Errorf("Face image is too large. Max %d KB.", isapi.MaxFaceImageBytes/1024)
	}

	devices := st.Load()
	if len(devices) == 0 {
		return Result{}, errors.New("No devices configured")
	}

	prepared, err := prepare(options)
	if err != nil {
		return Result{}, err
	}

	outcome := runDevices(devices, prepared, options.Gender, options.FaceImageBase64)

	if outcome.devicesChanged {
		// Hardware ids learned during connection tests are worth keeping
		// even when the registration itself fails.
		_ = st.Save(devices)
	}

	if outcome.abortError != "" {
		return Result{}, rollback(prepared, outcome)
	}

	return Result{
		EmployeeNo:     prepared.employeeNo,
		ProvisioningID: prepared.provisioningID,
		Results:        outcome.results,
	}, nil
}

// selected reports whether a device is in the effective target set. With no
// requested and no provisioned set, every stored device is a target.
func selected(device *store.Device, prepared *preparation) bool {
	var ids map[string]struct{}
	switch {
	case prepared.requestedTargetBackendIDs != nil:
		ids = prepared.requestedTargetBackendIDs
	case len(prepared.provisionedTargetBackendIDs) > 0:
		ids = prepared.provisionedTargetBackendIDs
	default:
		return true
	}

	if device.BackendID != "" {
		if _, ok := ids[device.BackendID]; ok {
			return true
		}
	}
	// Legacy records carry only the hardware id; resolve it through the
	// provisioning target map.
	if device.DeviceID != "" {
		if backendID, ok := prepared.backendDeviceMap[device.DeviceID]; ok {
			_, ok := ids[backendID]
			return ok
		}
	}
	return false
}

// runDevices walks the device list sequentially, stopping at the first
// failure. Devices it mutates (learned hardware ids) are flagged through
// devicesChanged so the caller persists them.
func runDevices(devices []store.Device, prepared *preparation, gender, faceImageBase64 string) deviceOutcome {
	log := logging.GetLogger()
	var outcome deviceOutcome

	for i := range devices {
		if outcome.abortError != "" {
			break
		}
		if prepared.explicitDBOnly {
			continue
		}
		device := &devices[i]
		if !selected(device, prepared) {
			continue
		}

		if device.CredentialsExpired() {
			externalID := device.DeviceID
			backendID := device.BackendID
			if backendID == "" {
				backendID = prepared.backendDeviceMap[externalID]
			}
			connection := isapi.ConnectionResult{
				OK:       false,
				Message:  expiredCredentialsMessage,
				DeviceID: device.DeviceID,
			}
			if err := prepared.reportResult(backend.DeviceReport{
				DeviceID:         backendID,
				DeviceExternalID: externalID,
				DeviceName:       device.Label(),
				DeviceLocation:   device.Host,
				Status:           backend.StatusFailed,
				Error:            connection.Message,
			}); err != nil {
				outcome.abortError = fmt.Sprintf("Backend report failed: %s", err)
			}
			outcome.results = append(outcome.results, DeviceResult{
				DeviceID:   device.ID,
				DeviceName: device.Label(),
				Connection: connection,
			})
			if outcome.abortError == "" {
				outcome.abortError = fmt.Sprintf("Device %s: %s", device.Label(), expiredCredentialsMessage)
			}
			continue
		}

		client := isapi.NewClient(*device)
		connection := client.TestConnection()
		if connection.OK && connection.DeviceID != "" && connection.DeviceID != device.DeviceID {
			device.DeviceID = connection.DeviceID
			outcome.devicesChanged = true
		}

		externalID := connection.DeviceID
		if externalID == "" {
			externalID = device.DeviceID
		}
		backendID := device.BackendID
		if backendID == "" {
			backendID = prepared.backendDeviceMap[externalID]
		}
		report := backend.DeviceReport{
			DeviceID:         backendID,
			DeviceExternalID: externalID,
			DeviceName:       device.Label(),
			DeviceLocation:   device.Host,
		}

		if !connection.OK {
			report.Status = backend.StatusFailed
			report.Error = connection.Message
			if err := prepared.reportResult(report); err != nil {
				outcome.abortError = fmt.Sprintf("Backend report failed: %s", err)
			}
			outcome.results = append(outcome.results, DeviceResult{
				DeviceID:   device.ID,
				DeviceName: device.Label(),
				Connection: connection,
			})
			if outcome.abortError == "" {
				reason := connection.Message
				if reason == "" {
					reason = "Connection error"
				}
				outcome.abortError = fmt.Sprintf("Device %s: %s", device.Label(), reason)
			}
			continue
		}

		userCreate := client.CreateUser(prepared.employeeNo, prepared.fullName, gender, prepared.beginTime, prepared.endTime)
		if !userCreate.OK {
			report.Status = backend.StatusFailed
			report.Error = userCreate.ErrorMsg
			if err := prepared.reportResult(report); err != nil {
				outcome.abortError = fmt.Sprintf("Backend report failed: %s", err)
			}
			outcome.results = append(outcome.results, DeviceResult{
				DeviceID:   device.ID,
				DeviceName: device.Label(),
				Connection: connection,
				UserCreate: &userCreate,
			})
			if outcome.abortError == "" {
				outcome.abortError = fmt.Sprintf("Device %s: Could not create user on device", device.Label())
			}
			continue
		}

		faceUpload := client.UploadFace(prepared.employeeNo, prepared.fullName, gender, faceImageBase64)

		report.Status = backend.StatusSuccess
		if !faceUpload.OK {
			report.Status = backend.StatusFailed
			report.Error = faceUpload.ErrorMsg
		}
		if err := prepared.reportResult(report); err != nil {
			outcome.abortError = fmt.Sprintf("Backend report failed: %s", err)
		}

		outcome.results = append(outcome.results, DeviceResult{
			DeviceID:   device.ID,
			DeviceName: device.Label(),
			Connection: connection,
			UserCreate: &userCreate,
			FaceUpload: &faceUpload,
		})

		if faceUpload.OK {
			outcome.committed = append(outcome.committed, committedDevice{
				device:           *device,
				backendDeviceID:  backendID,
				externalDeviceID: externalID,
				deviceName:       device.Label(),
				deviceLocation:   device.Host,
			})
			log.Debug("device accepted student",
				zap.String("device", device.Label()),
				zap.String("employeeNo", prepared.employeeNo))
		} else {
			// The user record without a face is useless; clean it up on
			// this terminal right away.
			_ = client.DeleteUser(prepared.employeeNo)
			if outcome.abortError == "" {
				outcome.abortError = fmt.Sprintf("Device %s: Could not upload face image to device", device.Label())
			}
		}
	}

	return outcome
}

// rollback undoes the registration on every terminal that fully accepted it
// and finalizes the provisioning record as failed. The returned error
// carries the original failure plus whatever went wrong while undoing.
func rollback(prepared *preparation, outcome deviceOutcome) error {
	message := outcome.abortError
	rollbackReason := "Rolled back due to failure: " + message
	var rollbackErrors []string
	var finalizeError string

	for _, committed := range outcome.committed {
		client := isapi.NewClient(committed.device)
		result := client.DeleteUser(prepared.employeeNo)
		if !result.OK {
			errText := result.ErrorMsg
			if errText == "" {
				errText = "Delete failed"
			}
			rollbackErrors = append(rollbackErrors, fmt.Sprintf("%s: %s", committed.deviceName, errText))
		}

		statusError := rollbackReason
		if !result.OK {
			errText := result.ErrorMsg
			if errText == "" {
				errText = "Rollback delete failed"
			}
			statusError = fmt.Sprintf("%s. Rollback delete failed: %s", rollbackReason, errText)
		}
		_ = prepared.reportResult(backend.DeviceReport{
			DeviceID:         committed.backendDeviceID,
			DeviceExternalID: committed.externalDeviceID,
			DeviceName:       committed.deviceName,
			DeviceLocation:   committed.deviceLocation,
			Status:           backend.StatusFailed,
			Error:            statusError,
		})
	}

	if prepared.api != nil && prepared.provisioningID != "" {
		finalizeReason := rollbackReason
		if len(rollbackErrors) > 0 {
			finalizeReason = fmt.Sprintf("%s. Rollback errors: %s", rollbackReason, strings.Join(rollbackErrors, "; "))
		}
		if _, err := prepared.api.FinalizeProvisioningFailure(prepared.provisioningID, finalizeReason); err != nil {
			finalizeError = err.Error()
		}
	}

	if finalizeError != "" {
		if len(rollbackErrors) == 0 {
			return fmt.Errorf("%s. Finalize failure error: %s", message, finalizeError)
		}
		return fmt.Errorf("%s. Rollback errors: %s. Finalize failure error: %s",
			message, strings.Join(rollbackErrors, "; "), finalizeError)
	}
	if len(rollbackErrors) == 0 {
		return errors.New(message)
	}
	return fmt.Errorf("%s. Rollback errors: %s", message, strings.Join(rollbackErrors, "; "))
}
