package tests

import (
	"os"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "github.com/mwalimu/shule/apps/api/echo"
	"github.com/mwalimu/shule/core"
	"github.com/mwalimu/shule/core/classroom"
	"github.com/mwalimu/shule/core/course"
	"github.com/mwalimu/shule/core/exam"
	"github.com/mwalimu/shule/core/question"
	"github.com/mwalimu/shule/core/user"
	emailsvc "github.com/mwalimu/shule/services/email"
	dummydb "github.com/mwalimu/shule/storage/database/dummy"
)

var (
	db  *dummydb.DB
	app echoapi.Server

	usrRepo  user.Repository
	crsRepo  course.Repository
	clsRepo  classroom.Repository
	qstRepo  question.Repository
	testRepo exam.Repository

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

func TestMain(m *testing.M) {
	// error payloads must be stable
	core.Conf.Debug = false
	core.Conf.TestMode = true

	var err error
	if db, err = dummydb.Open(); err != nil {
		os.Exit(1)
	}
	usrRepo = dummydb.NewUserRepository(db)
	crsRepo = dummydb.NewCourseRepository(db)
	clsRepoImpl := dummydb.NewClassroomRepository(db)
	clsRepo = clsRepoImpl
	qstRepoImpl := dummydb.NewQuestionRepository(db)
	qstRepo = qstRepoImpl
	testRepo = dummydb.NewTestRepository(db)

	mailSvc := emailsvc.NewConsoleServiceMock()
	usrSvc := user.NewServiceMock(usrRepo, mailSvc, core.Conf)
	crsSvc := course.NewService(nil, crsRepo, testRepo, clsRepoImpl, qstRepoImpl)
	clsSvc := classroom.NewService(nil, clsRepo, usrRepo, crsRepo, testRepo)
	qstSvc := question.NewService(nil, qstRepo, crsRepo, testRepo)
	tstSvc := exam.NewService(nil, testRepo, clsRepo, qstRepo, usrRepo)

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	app = echoapi.NewServer(echoapi.ServerDeps{
		Conf:           core.Conf,
		Logger:         nopLogger{},
		UserSvc:        usrSvc,
		CourseSvc:      crsSvc,
		ClassroomSvc:   clsSvc,
		QuestionSvc:    qstSvc,
		TestSvc:        tstSvc,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})

	os.Exit(m.Run())
}

func resetDB(t *testing.T) {
	t.Helper()
	db.Reset()
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

type nopLogger struct{}

func (nopLogger) Debug(msg string, args ...interface{}) {}
func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Warn(msg string, args ...interface{})  {}
func (nopLogger) Error(msg string, args ...interface{}) {}
func (nopLogger) Fatal(msg string, args ...interface{}) {}
