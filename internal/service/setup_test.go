package service

import (
	"testing"

	"approvalflow/internal/model"
	"approvalflow/internal/repository"
	"approvalflow/internal/storage"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Directory seeded into every fixture: staff reports to manager, manager to
// director, director to nobody.
const (
	staffEmail    = "staff@corp.test"
	managerEmail  = "manager@corp.test"
	directorEmail = "director@corp.test"
	outsiderEmail = "outsider@corp.test" // not in the directory
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Employee{}, &model.Request{}, &model.Document{}, &model.RequestAuditLog{}))
	return db
}

type fixture struct {
	db        *gorm.DB
	blobs     *storage.DiskStore
	requests  repository.RequestRepository
	docRepo   repository.DocumentRepository
	auditRepo repository.AuditRepository
	documents DocumentService
	audit     AuditService
	directory DirectoryService
	engine    RequestService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)

	blobs, err := storage.NewDiskStore(t.TempDir(), "http://localhost:8080")
	require.NoError(t, err)

	seed := []model.Employee{
		{Email: staffEmail, FullName: "Staff Member", ReportsTo: managerEmail},
		{Email: managerEmail, FullName: "Line Manager", ReportsTo: directorEmail},
		{Email: directorEmail, FullName: "Director", ReportsTo: ""},
	}
	for i := range seed {
		require.NoError(t, db.Create(&seed[i]).Error)
	}

	f := &fixture{
		db:        db,
		blobs:     blobs,
		requests:  repository.NewRequestRepository(db),
		docRepo:   repository.NewDocumentRepository(db),
		auditRepo: repository.NewAuditRepository(db),
	}
	f.documents = NewDocumentService(f.docRepo, blobs)
	f.audit = NewAuditService(f.auditRepo)
	f.directory = NewDirectoryService(repository.NewEmployeeRepository(db), nil)
	f.engine = NewRequestService(f.requests, repository.NewTransactionManager(db), f.documents, f.audit, f.directory, nil)
	return f
}
