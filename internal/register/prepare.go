// Package register implements the student registration saga: start a
// provisioning record on the backend, push the user and face to every
// selected terminal in sequence, and roll back whatever was committed when
// any step fails. The backend is optional; without it the saga degrades to
// a plain multi-device push.
package register

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/schoolpass/registrator/internal/backend"
	"github.com/schoolpass/registrator/internal/isapi"
)

// Options is one registration request.
type Options struct {
	Name            string
	FirstName       string
	LastName        string
	FatherName      string
	Gender          string
	FaceImageBase64 string
	ParentPhone     string
	ClassID         string

	// Targets selects which backend devices receive the student. A
	// non-explicit selection means every active device; an explicit empty
	// selection means backend-only (no terminal is touched).
	Targets backend.TargetSelection

	BackendURL        string
	BackendToken      string
	BackendAuthHeader string
	SchoolID          string
}

// preparation is everything resolved before the first terminal is touched.
type preparation struct {
	fullName       string
	employeeNo     string
	provisioningID string
	api            *backend.Client

	// backendDeviceMap maps terminal hardware ids to backend device ids,
	// as resolved by the provisioning start.
	backendDeviceMap map[string]string

	// requestedTargetBackendIDs is the caller's explicit selection, nil
	// when the caller made none. explicitDBOnly is set when the explicit
	// selection came back empty after trimming.
	requestedTargetBackendIDs map[string]struct{}
	explicitDBOnly            bool

	// provisionedTargetBackendIDs is the backend's resolved target set.
	provisionedTargetBackendIDs map[string]struct{}

	beginTime string
	endTime   string
}

// prepare resolves names, targets and the access window, and starts the
// backend provisioning record when a backend is configured.
func prepare(options Options) (*preparation, error) {
	backendURL := strings.TrimSpace(options.BackendURL)
	schoolID := strings.TrimSpace(options.SchoolID)

	first := strings.TrimSpace(options.FirstName)
	last := strings.TrimSpace(options.LastName)
	fullName := strings.TrimSpace(last + " " + first)
	if fullName == "" {
		fullName = strings.TrimSpace(options.Name)
	}

	if backendURL != "" && schoolID == "" {
		return nil, errors.New("schoolId is required when backendUrl is set")
	}

	p := &preparation{
		fullName:                    fullName,
		employeeNo:                  GenerateEmployeeNo(),
		backendDeviceMap:            make(map[string]string),
		provisionedTargetBackendIDs: make(map[string]struct{}),
	}

	if options.Targets.Explicit {
		p.requestedTargetBackendIDs = make(map[string]struct{})
		for _, id := range options.Targets.DeviceIDs {
			if trimmed := strings.TrimSpace(id); trimmed != "" {
				p.requestedTargetBackendIDs[trimmed] = struct{}{}
			}
		}
		p.explicitDBOnly = len(p.requestedTargetBackendIDs) == 0
	}

	if backendURL != "" {
		api, err := backend.NewClient(backend.Config{
			BaseURL:    backendURL,
			Token:      strings.TrimSpace(options.BackendToken),
			AuthHeader: options.BackendAuthHeader,
		})
		if err != nil {
			return nil, err
		}

		student := backend.StudentFields{
			Name:            fullName,
			Gender:          options.Gender,
			FirstName:       options.FirstName,
			LastName:        options.LastName,
			FatherName:      options.FatherName,
			DeviceStudentID: p.employeeNo,
			ClassID:         options.ClassID,
			ParentPhone:     options.ParentPhone,
			FaceImageBase64: options.FaceImageBase64,
		}
		response, err := api.StartProvisioning(schoolID, student, uuid.NewString(), options.Targets)
		if err != nil {
			return nil, fmt.Errorf("Backend provisioning failed: %s", err)
		}

		// The backend may assign its own device-facing student id; adopt
		// it as the employee number when it is a plain digit string.
		if isNumeric(response.DeviceStudentID) {
			p.employeeNo = response.DeviceStudentID
		}
		p.provisioningID = response.ProvisioningID
		for _, target := range response.TargetDevices {
			p.backendDeviceMap[target.DeviceID] = target.ID
			p.provisionedTargetBackendIDs[target.ID] = struct{}{}
		}
		p.api = api
	}

	p.beginTime, p.endTime = isapi.DefaultValidity(time.Now())
	return p, nil
}

// reportResult posts a per-device outcome when a provisioning record exists.
func (p *preparation) reportResult(report backend.DeviceReport) error {
	if p.api == nil || p.provisioningID == "" {
		return nil
	}
	report.EmployeeNo = p.employeeNo
	return p.api.ReportDeviceResult(p.provisioningID, report)
}
