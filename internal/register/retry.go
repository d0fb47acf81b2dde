package register

import (
	"slices"

	"github.com/schoolpass/registrator/internal/backend"
	"github.com/schoolpass/registrator/internal/isapi"
	"github.com/schoolpass/registrator/internal/store"
)

// RetryDeviceStatus is one backend device link after a retry, as the
// provisioning record reports it.
type RetryDeviceStatus struct {
	BackendDeviceID  string `json:"backendDeviceId"`
	DeviceExternalID string `json:"deviceExternalId,omitempty"`
	DeviceName       string `json:"deviceName"`
	Status           string `json:"status"`
	LastError        string `json:"lastError,omitempty"`
	UpdatedAt        string `json:"updatedAt,omitempty"`
}

// ConnectionCheck summarizes the local connectivity sweep done right after
// the backend reset the failed links.
type ConnectionCheck struct {
	Checked            int `json:"checked"`
	Failed             int `json:"failed"`
	MissingCredentials int `json:"missingCredentials"`
}

// RetrySummary is the outcome of a provisioning retry.
type RetrySummary struct {
	TargetDeviceIDs  []string            `json:"targetDeviceIds"`
	PerDeviceResults []RetryDeviceStatus `json:"perDeviceResults"`
	ConnectionCheck  ConnectionCheck     `json:"connectionCheck"`
}

// Retry asks the backend to reset the failed device links of a provisioning
// record and immediately re-checks local connectivity for each target,
// reporting fresh failures back so the record reflects reality.
func Retry(st *store.Store, api *backend.Client, provisioningID string, deviceIDs []string) (RetrySummary, error) {
	retryResult, err := api.RetryProvisioning(provisioningID, deviceIDs)
	if err != nil {
		return RetrySummary{}, err
	}
	provisioning, err := api.GetProvisioning(provisioningID)
	if err != nil {
		return RetrySummary{}, err
	}

	employeeNo := getString(getMap(provisioning, "student"), "deviceStudentId")

	targetIDs := deviceIDs
	if len(targetIDs) == 0 {
		targetIDs = stringSlice(retryResult["targetDeviceIds"])
	}
	if len(targetIDs) == 0 {
		for _, link := range mapSlice(provisioning["devices"]) {
			if id := getString(link, "deviceId"); id != "" {
				targetIDs = append(targetIDs, id)
			}
		}
	}

	localDevices := st.Load()
	localChanged := false
	var check ConnectionCheck

	for _, backendDeviceID := range targetIDs {
		link := findLink(provisioning, backendDeviceID)
		deviceInfo := getMap(link, "device")
		externalID := getString(deviceInfo, "deviceId")
		deviceName := getString(deviceInfo, "name")
		deviceLocation := getString(deviceInfo, "location")

		report := backend.DeviceReport{
			DeviceID:         backendDeviceID,
			DeviceExternalID: externalID,
			DeviceName:       deviceName,
			DeviceLocation:   deviceLocation,
			Status:           backend.StatusFailed,
			EmployeeNo:       employeeNo,
		}

		index := store.FindIndex(localDevices, backendDeviceID, externalID)
		if index < 0 {
			check.MissingCredentials++
			check.Failed++
			report.Error = "No local credentials found for device"
			_ = api.ReportDeviceResult(provisioningID, report)
			continue
		}
		if localDevices[index].CredentialsExpired() {
			check.Failed++
			report.Error = expiredCredentialsMessage
			_ = api.ReportDeviceResult(provisioningID, report)
			continue
		}

		check.Checked++
		test := isapi.NewClient(localDevices[index]).TestConnection()
		if test.OK {
			if test.DeviceID != "" && test.DeviceID != localDevices[index].DeviceID {
				localDevices[index].DeviceID = test.DeviceID
				localChanged = true
			}
			continue
		}

		check.Failed++
		report.Error = test.Message
		if report.Error == "" {
			report.Error = "Connection error"
		}
		_ = api.ReportDeviceResult(provisioningID, report)
	}

	if localChanged {
		_ = st.Save(localDevices)
	}

	// Re-fetch so the summary reflects the failures just reported.
	final, err := api.GetProvisioning(provisioningID)
	if err != nil {
		final = provisioning
	}

	summary := RetrySummary{
		TargetDeviceIDs: targetIDs,
		ConnectionCheck: check,
	}
	for _, link := range mapSlice(final["devices"]) {
		backendDeviceID := getString(link, "deviceId")
		if backendDeviceID == "" {
			continue
		}
		if len(targetIDs) > 0 && !slices.Contains(targetIDs, backendDeviceID) {
			continue
		}
		deviceInfo := getMap(link, "device")
		status := getString(link, "status")
		if status == "" {
			status = "UNKNOWN"
		}
		summary.PerDeviceResults = append(summary.PerDeviceResults, RetryDeviceStatus{
			BackendDeviceID:  backendDeviceID,
			DeviceExternalID: getString(deviceInfo, "deviceId"),
			DeviceName:       getString(deviceInfo, "name"),
			Status:           status,
			LastError:        getString(link, "lastError"),
			UpdatedAt:        getString(link, "updatedAt"),
		})
	}
	return summary, nil
}

func findLink(provisioning map[string]any, backendDeviceID string) map[string]any {
	for _, link := range mapSlice(provisioning["devices"]) {
		if getString(link, "deviceId") == backendDeviceID {
			return link
		}
	}
	return nil
}

func getMap(value any, key string) map[string]any {
	m, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	inner, _ := m[key].(map[string]any)
	return inner
}

func getString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func mapSlice(value any) []map[string]any {
	items, ok := value.([]any)
	if !ok {
		return nil
	}
	result := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			result = append(result, m)
		}
	}
	return result
}

func stringSlice(value any) []string {
	items, ok := value.([]any)
	if !ok {
		return nil
	}
	var result []string
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			result = append(result, s)
		}
	}
	return result
}
