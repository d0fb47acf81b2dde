package register

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/schoolpass/registrator/internal/isapi"
	"github.com/schoolpass/registrator/internal/store"
)

// RecreateOptions controls a delete-and-recreate of one user record.
type RecreateOptions struct {
	EmployeeNo string
	Name       string
	Gender     string

	// NewEmployeeNo assigns a freshly generated number instead of reusing
	// the old one.
	NewEmployeeNo bool

	// ReuseExistingFace pulls the face currently stored on the terminal
	// before deleting, so the recreated record keeps it. Ignored when
	// FaceImageBase64 is set.
	ReuseExistingFace bool
	FaceImageBase64   string
}

// RecreateResult reports each step of the recreate.
type RecreateResult struct {
	EmployeeNo   string             `json:"employeeNo"`
	DeleteResult isapi.ActionResult `json:"deleteResult"`
	CreateResult isapi.ActionResult `json:"createResult"`
	FaceUpload   isapi.ActionResult `json:"faceUpload"`
}

// RecreateUser deletes a user record and creates it again with a fresh
// 10-year validity window. The face is secured before the delete: once the
// record is gone the terminal drops its templates with it.
func RecreateUser(device store.Device, options RecreateOptions) (RecreateResult, error) {
	client := isapi.NewClient(device)

	connection := client.TestConnection()
	if !connection.OK {
		message := connection.Message
		if message == "" {
			message = "Device offline"
		}
		return RecreateResult{}, errors.New(message)
	}

	faceData := options.FaceImageBase64
	if faceData == "" {
		if !options.ReuseExistingFace {
			return RecreateResult{}, errors.New("Face image is required")
		}
		user, found := client.GetUserByEmployeeNo(options.EmployeeNo)
		if !found {
			return RecreateResult{}, errors.New("User not found on device")
		}
		if user.FaceURL == "" {
			return RecreateResult{}, errors.New("Existing user has no face to reuse")
		}
		faceBytes, err := client.FetchFaceImage(user.FaceURL)
		if err != nil {
			return RecreateResult{}, err
		}
		faceData = base64.StdEncoding.EncodeToString(faceBytes)
	}

	nextEmployeeNo := options.EmployeeNo
	if options.NewEmployeeNo {
		nextEmployeeNo = GenerateEmployeeNo()
	}

	deleteResult := client.DeleteUser(options.EmployeeNo)
	if !deleteResult.OK {
		return RecreateResult{}, fmt.Errorf("Delete failed: %s", deleteResult.ErrorMsg)
	}

	beginTime, endTime := isapi.DefaultValidity(time.Now())
	createResult := client.CreateUser(nextEmployeeNo, options.Name, options.Gender, beginTime, endTime)
	if !createResult.OK {
		return RecreateResult{}, fmt.Errorf("Create failed: %s", createResult.ErrorMsg)
	}

	faceUpload := client.UploadFace(nextEmployeeNo, options.Name, options.Gender, faceData)

	return RecreateResult{
		EmployeeNo:   nextEmployeeNo,
		DeleteResult: deleteResult,
		CreateResult: createResult,
		FaceUpload:   faceUpload,
	}, nil
}
