package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/mwalimu/shule/core/classroom"
	"github.com/mwalimu/shule/core/user"
	testutil "github.com/mwalimu/shule/tests"
)

func Test_classroomApi_adminOnly(t *testing.T) {
	resetDB(t)

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher@test.cd", "", user.RoleTeacher, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero@test.cd", "", user.RoleStudent, true)
	forbidden := marchallObj(t, httpErr{Error: "permission denied"})

	tests := []httpTest{
		{name: "Auth required", method: http.MethodGet, path: "/api/classrooms", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "teacher cannot list", method: http.MethodGet, path: "/api/classrooms", token: getToken(t, teacher), wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "student cannot list", method: http.MethodGet, path: "/api/classrooms", token: getToken(t, student), wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "teacher cannot create", method: http.MethodPost, path: "/api/classrooms", token: getToken(t, teacher), wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "student cannot delete", method: http.MethodDelete, path: "/api/classrooms/lol", token: getToken(t, student), wantCode: http.StatusForbidden, wantData: forbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_classroomApi_create(t *testing.T) {
	resetDB(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@test.cd", "", user.RoleAdmin, true)
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher@test.cd", "", user.RoleTeacher, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero@test.cd", "", user.RoleStudent, true)
	math := testutil.CreateCourse(t, crsRepo, "Algebra", "MATH101", 6)
	testutil.CreateClassroom(t, clsRepo, "Taken", 20, math.ID, teacher.ID, nil)

	adminToken := getToken(t, admin)
	intPtr := func(i int) *int { return &i }

	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"name": "this field is required", "course": "this field is required", "teacher": "this field is required",
			}),
		},
		{
			name: "name taken", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, classroom.NewClassroom{Name: "Taken", CourseID: math.ID, TeacherID: teacher.ID}),
			wantData: marchallObj(t, map[string]string{"name": "a classroom with this name already exists"}),
		},
		{
			name: "unknown course", wantCode: http.StatusNotFound,
			body:     marchallObj(t, classroom.NewClassroom{Name: "Room B", CourseID: "nope", TeacherID: teacher.ID}),
			wantData: marchallObj(t, httpErr{Error: "course not found with id: nope"}),
		},
		{
			name: "teacher role enforced", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, classroom.NewClassroom{Name: "Room B", CourseID: math.ID, TeacherID: student.ID}),
			wantData: marchallObj(t, httpErr{Error: "classrooms require a teacher with role 'teacher', id " + student.ID + " does not have it"}),
		},
		{
			name: "capacity exceeded", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, classroom.NewClassroom{Name: "Room B", Capacity: intPtr(0), CourseID: math.ID, TeacherID: teacher.ID, StudentIDs: []string{student.ID}}),
			wantData: marchallObj(t, httpErr{Error: "limit of 0 students, got 1"}),
		},
		{
			name: "created", wantCode: http.StatusCreated,
			body: marchallObj(t, classroom.NewClassroom{Name: "Room B", CourseID: math.ID, TeacherID: teacher.ID, StudentIDs: []string{student.ID}}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/api/classrooms", adminToken, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusCreated {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var room classroom.Classroom
				if err := json.Unmarshal(rec.Body.Bytes(), &room); err != nil {
					t.Errorf("json.Unmarshal() failed! err %v", err)
				}
				if room.Capacity != classroom.DefaultCapacity {
					t.Errorf("failed! capacity = %d; want %d", room.Capacity, classroom.DefaultCapacity)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_classroomApi_enrollmentConflict(t *testing.T) {
	resetDB(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@test.cd", "", user.RoleAdmin, true)
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher@test.cd", "", user.RoleTeacher, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero@test.cd", "", user.RoleStudent, true)
	math := testutil.CreateCourse(t, crsRepo, "Algebra", "MATH101", 6)
	testutil.CreateClassroom(t, clsRepo, "Room A", 20, math.ID, teacher.ID, []string{student.ID})

	body := marchallObj(t, classroom.NewClassroom{Name: "Room B", CourseID: math.ID, TeacherID: teacher.ID, StudentIDs: []string{student.ID}})
	req, rec := newAuthRequest(http.MethodPost, "/api/classrooms", getToken(t, admin), body)
	app.ServeHTTP(rec, req)

	tt := httpTest{
		wantCode: http.StatusConflict,
		wantData: marchallObj(t, httpErr{Error: "student " + student.ID + " is already enrolled in a classroom of course " + math.ID}),
	}
	checkCodeAndData(t, tt, rec)
}

func Test_classroomApi_update(t *testing.T) {
	resetDB(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@test.cd", "", user.RoleAdmin, true)
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher@test.cd", "", user.RoleTeacher, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero@test.cd", "", user.RoleStudent, true)
	math := testutil.CreateCourse(t, crsRepo, "Algebra", "MATH101", 6)
	room := testutil.CreateClassroom(t, clsRepo, "Room A", 20, math.ID, teacher.ID, []string{student.ID})

	adminToken := getToken(t, admin)

	tests := []httpTest{
		{
			name: "not found", path: "/api/classrooms/nope", wantCode: http.StatusNotFound,
			body:     marchallObj(t, classroom.UpdateClassroom{Name: "X"}),
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "same roster re-submitted", path: "/api/classrooms/" + room.ID, wantCode: http.StatusOK,
			body: marchallObj(t, classroom.UpdateClassroom{Name: "Room A1", StudentIDs: &[]string{student.ID}}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPut, tt.path, adminToken, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var got classroom.Classroom
				if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
					t.Errorf("json.Unmarshal() failed! err %v", err)
				}
				if got.Name != "Room A1" {
					t.Errorf("failed! name = %q", got.Name)
				}
				if !got.HasStudent(student.ID) {
					t.Error("failed! roster lost the student")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_classroomApi_destroy(t *testing.T) {
	resetDB(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@test.cd", "", user.RoleAdmin, true)
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher@test.cd", "", user.RoleTeacher, true)
	math := testutil.CreateCourse(t, crsRepo, "Algebra", "MATH101", 6)
	room := testutil.CreateClassroom(t, clsRepo, "Room A", 20, math.ID, teacher.ID, nil)

	req, rec := newAuthRequest(http.MethodDelete, "/api/classrooms/"+room.ID, getToken(t, admin))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusNoContent)
	}

	req, rec = newAuthRequest(http.MethodGet, "/api/classrooms/"+room.ID, getToken(t, admin))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, http.StatusNotFound)
	}
}
