// Package testutil provides shared fixtures for service and API tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mwalimu/shule/core/classroom"
	"github.com/mwalimu/shule/core/course"
	"github.com/mwalimu/shule/core/exam"
	"github.com/mwalimu/shule/core/question"
	"github.com/mwalimu/shule/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateCourse(t *testing.T, repo course.Repository, name, code string, load int) course.Course {
	t.Helper()

	crs, err := repo.CreateCourse(context.Background(), course.Course{
		Name:       name,
		CourseCode: code,
		CourseLoad: load,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return crs
}

func CreateClassroom(
	t *testing.T,
	repo classroom.Repository,
	name string,
	capacity int,
	courseID, teacherID string,
	studentIDs []string,
) classroom.Classroom {
	t.Helper()

	now := time.Now().UTC()
	room, err := repo.CreateClassroom(context.Background(), classroom.Classroom{
		Name:       name,
		Capacity:   capacity,
		CourseID:   courseID,
		TeacherID:  teacherID,
		StudentIDs: studentIDs,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		t.Fatalf("CreateClassroom() failed: %v", err)
	}
	return room
}

// CreateQuestion makes a question with the standard five options, the first
// one correct.
func CreateQuestion(t *testing.T, repo question.Repository, courseID, text string) question.Question {
	t.Helper()

	answers := make([]question.Answer, 0, question.AnswerCount)
	for i := 0; i < question.AnswerCount; i++ {
		answers = append(answers, question.Answer{
			ID:      uuid.New().String(),
			Text:    fmt.Sprintf("%s - option %d", text, i+1),
			Correct: i == 0,
		})
	}
	qst, err := repo.CreateQuestion(context.Background(), question.Question{
		Text:      text,
		CourseID:  courseID,
		Photo:     "no-photo.jpg",
		Answers:   answers,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateQuestion() failed: %v", err)
	}
	return qst
}

func CreateTest(t *testing.T, repo exam.Repository, title, classroomID string, questionIDs []string) exam.Test {
	t.Helper()

	now := time.Now().UTC()
	tst, err := repo.CreateTest(context.Background(), exam.Test{
		Title:       title,
		ClassroomID: classroomID,
		QuestionIDs: questionIDs,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("CreateTest() failed: %v", err)
	}
	return tst
}
