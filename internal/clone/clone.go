// Package clone copies user records between terminals and from the backend
// roster onto a terminal. Cloning is forgiving where registration is strict:
// every record is attempted, failures are collected per item, and the walk
// never aborts early.
package clone

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/schoolpass/registrator/internal/backend"
	"github.com/schoolpass/registrator/internal/isapi"
	"github.com/schoolpass/registrator/internal/logging"
	"github.com/schoolpass/registrator/internal/store"
)

const (
	pageSize     = 30
	defaultLimit = 10000
)

// ItemError records why one record could not be cloned.
type ItemError struct {
	EmployeeNo string `json:"employeeNo,omitempty"`
	StudentID  string `json:"studentId,omitempty"`
	Name       string `json:"name"`
	Reason     string `json:"reason"`
}

// Summary is the outcome of one clone run. Skipped counts records that were
// not worth attempting (incomplete data, already present); Failed counts
// genuine errors.
type Summary struct {
	Source    string      `json:"source,omitempty"`
	Target    string      `json:"target"`
	Processed int         `json:"processed"`
	Success   int         `json:"success"`
	Failed    int         `json:"failed"`
	Skipped   int         `json:"skipped"`
	Errors    []ItemError `json:"errors"`
}

// NormalizeGender folds the gender spellings found on terminals in the wild
// into the two values user records accept. Unknown values become "male".
func NormalizeGender(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case "female", "f", "fa", "ayol", "2":
		return "female"
	case "male", "m", "ma", "erkak", "1":
		return "male"
	}
	if strings.Contains(value, "female") {
		return "female"
	}
	return "male"
}

// duplicateCreate reports whether a create failure means the record already
// exists on the target, which cloning treats as a skip rather than an error.
func duplicateCreate(reason string) bool {
	lower := strings.ToLower(reason)
	return strings.Contains(lower, "already") ||
		strings.Contains(lower, "exist") ||
		strings.Contains(lower, "duplicate")
}

// DeviceToDevice copies user records and faces from one terminal to another.
// Records already present on the target keep their user entry; only the face
// is re-uploaded. limit <= 0 means the default cap.
func DeviceToDevice(source, target store.Device, limit int) (Summary, error) {
	if source.CredentialsExpired() {
		return Summary{}, errors.New("Source device credentials have expired")
	}
	if target.CredentialsExpired() {
		return Summary{}, errors.New("Target device credentials have expired")
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	log := logging.GetLogger()
	sourceClient := isapi.NewClient(source)
	targetClient := isapi.NewClient(target)

	summary := Summary{
		Source: source.MatchLabel(),
		Target: target.MatchLabel(),
		Errors: []ItemError{},
	}

	for offset := 0; summary.Processed < limit; offset += pageSize {
		page := sourceClient.SearchUsers(offset, pageSize)
		if len(page.Users) == 0 {
			break
		}

		for _, user := range page.Users {
			if summary.Processed >= limit {
				break
			}
			summary.Processed++

			gender := NormalizeGender(user.Gender)
			if strings.TrimSpace(user.EmployeeNo) == "" ||
				strings.TrimSpace(user.Name) == "" ||
				strings.TrimSpace(user.FaceURL) == "" {
				summary.Skipped++
				summary.Errors = append(summary.Errors, ItemError{
					EmployeeNo: user.EmployeeNo,
					Name:       user.Name,
					Reason:     "Missing data (employeeNo/name/faceURL)",
				})
				continue
			}

			faceBytes, err := sourceClient.FetchFaceImage(user.FaceURL)
			if err != nil {
				summary.Failed++
				summary.Errors = append(summary.Errors, ItemError{
					EmployeeNo: user.EmployeeNo,
					Name:       user.Name,
					Reason:     "Could not fetch face image from source device",
				})
				continue
			}
			faceBase64 := base64.StdEncoding.EncodeToString(faceBytes)

			if _, exists := targetClient.GetUserByEmployeeNo(user.EmployeeNo); !exists {
				beginTime, endTime := isapi.DefaultValidity(time.Now())
				create := targetClient.CreateUser(user.EmployeeNo, user.Name, gender, beginTime, endTime)
				if !create.OK {
					reason := create.ErrorMsg
					if reason == "" {
						reason = "Create failed"
					}
					if duplicateCreate(reason) {
						summary.Skipped++
					} else {
						summary.Failed++
						summary.Errors = append(summary.Errors, ItemError{
							EmployeeNo: user.EmployeeNo,
							Name:       user.Name,
							Reason:     reason,
						})
					}
					continue
				}
			}

			upload := targetClient.UploadFace(user.EmployeeNo, user.Name, gender, faceBase64)
			if !upload.OK {
				reason := upload.ErrorMsg
				if reason == "" {
					reason = "Upload failed"
				}
				summary.Failed++
				summary.Errors = append(summary.Errors, ItemError{
					EmployeeNo: user.EmployeeNo,
					Name:       user.Name,
					Reason:     reason,
				})
				continue
			}
			summary.Success++
		}
	}

	log.Debug("device clone finished",
		zap.String("source", summary.Source),
		zap.String("target", summary.Target),
		zap.Int("processed", summary.Processed),
		zap.Int("success", summary.Success))
	return summary, nil
}

// StudentsToDevice pushes the backend roster of a school onto the terminal
// linked to the given backend device id. maxStudents <= 0 means the default
// cap.
func StudentsToDevice(st *store.Store, api *backend.Client, schoolID, backendDeviceID string, maxStudents int) (Summary, error) {
	if strings.TrimSpace(schoolID) == "" {
		return Summary{}, errors.New("schoolId is required")
	}
	if maxStudents <= 0 {
		maxStudents = defaultLimit
	}

	devices := st.Load()
	index := store.FindIndex(devices, backendDeviceID, "")
	if index < 0 {
		return Summary{}, errors.New("No local credentials found for device")
	}
	target := devices[index]
	if target.CredentialsExpired() {
		return Summary{}, errors.New("Device credentials have expired")
	}

	client := isapi.NewClient(target)
	summary := Summary{
		Target: target.MatchLabel(),
		Errors: []ItemError{},
	}

	for page := 1; summary.Processed < maxStudents; page++ {
		roster, err := api.ListStudents(schoolID, page)
		if err != nil {
			return Summary{}, err
		}
		if len(roster.Data) == 0 {
			break
		}

		for _, student := range roster.Data {
			if summary.Processed >= maxStudents {
				break
			}
			summary.Processed++

			gender := student.Gender
			if gender == "" {
				gender = "MALE"
			}

			if student.DeviceStudentID == "" || student.Name == "" || student.PhotoURL == "" {
				summary.Skipped++
				summary.Errors = append(summary.Errors, ItemError{
					StudentID: student.ID,
					Name:      student.Name,
					Reason:    "Missing data (deviceStudentId/name/photoUrl)",
				})
				continue
			}

			photoBytes, err := api.FetchStudentPhoto(student.PhotoURL)
			if err != nil {
				summary.Failed++
				summary.Errors = append(summary.Errors, ItemError{
					StudentID: student.ID,
					Name:      student.Name,
					Reason:    "Could not download photo",
				})
				continue
			}
			faceBase64 := base64.StdEncoding.EncodeToString(photoBytes)

			beginTime, endTime := isapi.DefaultValidity(time.Now())
			create := client.CreateUser(student.DeviceStudentID, student.Name, gender, beginTime, endTime)
			if !create.OK {
				reason := create.ErrorMsg
				if reason == "" {
					reason = "Create failed"
				}
				summary.Failed++
				summary.Errors = append(summary.Errors, ItemError{
					StudentID: student.ID,
					Name:      student.Name,
					Reason:    reason,
				})
				continue
			}

			upload := client.UploadFace(student.DeviceStudentID, student.Name, gender, faceBase64)
			if !upload.OK {
				reason := upload.ErrorMsg
				if reason == "" {
					reason = "Upload failed"
				}
				summary.Failed++
				summary.Errors = append(summary.Errors, ItemError{
					StudentID: student.ID,
					Name:      student.Name,
					Reason:    reason,
				})
				continue
			}
			summary.Success++
		}
	}

	return summary, nil
}
