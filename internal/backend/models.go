package backend

// Device result statuses reported to the provisioning record.
const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// TargetSelection distinguishes "no explicit selection" from an explicit,
// possibly empty, device list. An explicit empty list means the backend
// should create the record without pushing to any device.
type TargetSelection struct {
	Explicit  bool
	DeviceIDs []string
}

// ExplicitTargets selects exactly the given backend device ids.
func ExplicitTargets(deviceIDs []string) TargetSelection {
	return TargetSelection{Explicit: true, DeviceIDs: deviceIDs}
}

// AllActiveTargets lets the backend resolve the target set to every active
// device it knows.
func AllActiveTargets() TargetSelection {
	return TargetSelection{}
}

// StudentFields carries the student attributes sent when starting a
// provisioning record. Empty strings are omitted from the request.
type StudentFields struct {
	Name            string `json:"name"`
	Gender          string `json:"gender"`
	FirstName       string `json:"firstName,omitempty"`
	LastName        string `json:"lastName,omitempty"`
	FatherName      string `json:"fatherName,omitempty"`
	DeviceStudentID string `json:"deviceStudentId,omitempty"`
	ClassID         string `json:"classId,omitempty"`
	ParentPhone     string `json:"parentPhone,omitempty"`
	FaceImageBase64 string `json:"faceImageBase64,omitempty"`
}

// TargetDevice is one backend-resolved provisioning target: the backend's
// device id paired with the physical identifier the terminal reports.
type TargetDevice struct {
	ID       string `json:"id"`
	DeviceID string `json:"deviceId"`
}

// StartResponse is the backend's answer to a provisioning start.
type StartResponse struct {
	ProvisioningID  string         `json:"provisioningId"`
	DeviceStudentID string         `json:"deviceStudentId"`
	StudentID       string         `json:"studentId"`
	TargetDevices   []TargetDevice `json:"targetDevices"`
}

// DeviceReport is one per-device outcome posted to a provisioning record.
type DeviceReport struct {
	DeviceID         string `json:"deviceId,omitempty"`
	DeviceExternalID string `json:"deviceExternalId,omitempty"`
	DeviceName       string `json:"deviceName,omitempty"`
	DeviceType       string `json:"deviceType,omitempty"`
	DeviceLocation   string `json:"deviceLocation,omitempty"`
	Status           string `json:"status"`
	EmployeeNo       string `json:"employeeNoOnDevice"`
	Error            string `json:"error,omitempty"`
}

// Student is one roster entry returned by the school student listing.
type Student struct {
	ID              string `json:"id"`
	DeviceStudentID string `json:"deviceStudentId"`
	Name            string `json:"name"`
	Gender          string `json:"gender"`
	PhotoURL        string `json:"photoUrl"`
}

// StudentPage is one page of the school roster.
type StudentPage struct {
	Data []Student `json:"data"`
}
