package register

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// recreateTerminal extends the basic fake with user search and face download
// so the reuse-existing-face path can be exercised.
type recreateTerminal struct {
	fakeTerminal
	existingEmployeeNo string
	faceBytes          []byte
}

func (f *recreateTerminal) handler() http.HandlerFunc {
	base := f.fakeTerminal.handler()
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/ISAPI/AccessControl/UserInfo/Search"):
			if f.existingEmployeeNo == "" {
				fmt.Fprint(w, `{"UserInfoSearch":{"numOfMatches":0,"totalMatches":0,"UserInfo":[]}}`)
				return
			}
			fmt.Fprintf(w, `{"UserInfoSearch":{"numOfMatches":1,"totalMatches":1,
				"UserInfo":[{"employeeNo":%q,"name":"Old Name","faceURL":"/LOCALS/pic/1.jpg"}]}}`,
				f.existingEmployeeNo)
		case r.URL.Path == "/LOCALS/pic/1.jpg":
			w.Write(f.faceBytes)
		default:
			base(w, r)
		}
	}
}

func TestRecreateUserReusesExistingFace(t *testing.T) {
	terminal := &recreateTerminal{
		fakeTerminal:       fakeTerminal{deviceID: "HW-1"},
		existingEmployeeNo: "1112223334",
		faceBytes:          []byte{0xFF, 0xD8, 0x11, 0x22},
	}
	server := httptest.NewServer(terminal.handler())
	defer server.Close()

	result, err := RecreateUser(terminalDevice(t, server, "dev-1"), RecreateOptions{
		EmployeeNo:        "1112223334",
		Name:              "New Name",
		Gender:            "male",
		ReuseExistingFace: true,
	})
	if err != nil {
		t.Fatalf("RecreateUser() error = %v", err)
	}
	if result.EmployeeNo != "1112223334" {
		t.Errorf("employeeNo = %s, want the old number kept", result.EmployeeNo)
	}
	if !result.DeleteResult.OK || !result.CreateResult.OK || !result.FaceUpload.OK {
		t.Errorf("result = %+v", result)
	}
	if len(terminal.deleted) != 1 || terminal.deleted[0] != "1112223334" {
		t.Errorf("deleted = %v", terminal.deleted)
	}
	if len(terminal.created) != 1 || terminal.created[0] != "1112223334" {
		t.Errorf("created = %v", terminal.created)
	}
	if len(terminal.uploaded) != 1 {
		t.Errorf("uploaded = %v", terminal.uploaded)
	}
}

func TestRecreateUserAssignsFreshNumber(t *testing.T) {
	terminal := &recreateTerminal{fakeTerminal: fakeTerminal{deviceID: "HW-1"}}
	server := httptest.NewServer(terminal.handler())
	defer server.Close()

	face := base64.StdEncoding.EncodeToString([]byte{0x01, 0x02})
	result, err := RecreateUser(terminalDevice(t, server, "dev-1"), RecreateOptions{
		EmployeeNo:      "1112223334",
		Name:            "New Name",
		Gender:          "female",
		NewEmployeeNo:   true,
		FaceImageBase64: face,
	})
	if err != nil {
		t.Fatalf("RecreateUser() error = %v", err)
	}
	if result.EmployeeNo == "1112223334" || !isNumeric(result.EmployeeNo) {
		t.Errorf("employeeNo = %s, want a fresh number", result.EmployeeNo)
	}
}

func TestRecreateUserRequiresFaceSource(t *testing.T) {
	terminal := &recreateTerminal{fakeTerminal: fakeTerminal{deviceID: "HW-1"}}
	server := httptest.NewServer(terminal.handler())
	defer server.Close()

	_, err := RecreateUser(terminalDevice(t, server, "dev-1"), RecreateOptions{
		EmployeeNo: "1",
		Name:       "x",
		Gender:     "male",
	})
	if err == nil || err.Error() != "Face image is required" {
		t.Errorf("error = %v", err)
	}

	_, err = RecreateUser(terminalDevice(t, server, "dev-1"), RecreateOptions{
		EmployeeNo:        "1",
		Name:              "x",
		Gender:            "male",
		ReuseExistingFace: true,
	})
	if err == nil || err.Error() != "User not found on device" {
		t.Errorf("error = %v", err)
	}
}
