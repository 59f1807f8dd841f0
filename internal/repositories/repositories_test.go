package repositories

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rohits-web03/softvault/internal/apperr"
	"github.com/rohits-web03/softvault/internal/config"
	"github.com/rohits-web03/softvault/internal/models"
	"github.com/rohits-web03/softvault/internal/storage"
)

var testAdmin = config.AdminConfig{Username: "admin", Password: "admin123", Email: "admin@example.com"}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(sqlitePrefix+filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, Migrate(db, testAdmin))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func testCatalog(t *testing.T, maxUpload int64) (*CatalogStore, afero.Fs, *gorm.DB) {
	db := testDB(t)
	fs := afero.NewMemMapFs()
	return NewCatalogStore(db, storage.NewFsStore(fs), maxUpload, zerolog.Nop()), fs, db
}

func TestMigrateSeedsAndIsIdempotent(t *testing.T) {
	db := testDB(t)
	require.NoError(t, Migrate(db, testAdmin))

	users := NewUserStore(db)
	sys, err := users.Get(context.Background(), models.SystemUserID)
	require.NoError(t, err)
	assert.Equal(t, models.SystemUsername, sys.Username)
	assert.False(t, sys.IsActive)

	admin, err := users.Authenticate(context.Background(), "admin", "admin123")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.NotNil(t, admin.LastLogin)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	vals, err := NewConfigStore(db).ConfigValues(context.Background(), "ai_auto_review_enabled", "ai_model_name", "nope")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"ai_auto_review_enabled": "false", "ai_model_name": "gpt-3.5-turbo"}, vals)
}

func TestCreateSoftwareConflict(t *testing.T) {
	c, _, _ := testCatalog(t, 1<<20)
	ctx := context.Background()

	require.NoError(t, c.CreateSoftware(ctx, &models.Software{Name: "7zip"}))
	err := c.CreateSoftware(ctx, &models.Software{Name: "7zip"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.ErrorIs(t, c.CreateSoftware(ctx, &models.Software{Name: " "}), apperr.ErrValidation)
}

func TestInsertOrReuseAfterLostRace(t *testing.T) {
	c, _, db := testCatalog(t, 1<<20)
	ctx := context.Background()

	winner := &models.Software{Name: "vlc", Category: "media"}
	require.NoError(t, c.CreateSoftware(ctx, winner))

	err := db.Transaction(func(tx *gorm.DB) error {
		got, created, err := insertOrReuse(tx, &models.Software{Name: "vlc"})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, winner.ID, got.ID)

		// the transaction is still usable after the failed savepoint
		return tx.Create(&models.SoftwareRequest{SoftwareName: "vlc", Version: "1", DownloadURL: "https://x/vlc.exe", ApplicantID: models.SystemUserID}).Error
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Software{}).Where("name = ?", "vlc").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestFindOrCreateSoftware(t *testing.T) {
	_, _, db := testCatalog(t, 1<<20)

	var first, second *models.Software
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var created bool
		var err error
		first, created, err = FindOrCreateSoftware(tx, &models.Software{Name: "git"})
		assert.True(t, created)
		return err
	}))
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var created bool
		var err error
		second, created, err = FindOrCreateSoftware(tx, &models.Software{Name: "git"})
		assert.False(t, created)
		return err
	}))
	assert.Equal(t, first.ID, second.ID)
}

func TestUploadVersion(t *testing.T) {
	c, fs, _ := testCatalog(t, 8)
	ctx := context.Background()
	sw := &models.Software{Name: "curl"}
	require.NoError(t, c.CreateSoftware(ctx, sw))

	v, err := c.UploadVersion(ctx, UploadInput{
		SoftwareID: sw.ID, Version: "8.0", FileName: `C:\tmp\curl.zip`, Body: strings.NewReader("12345678"), UploaderID: models.SystemUserID,
	})
	require.NoError(t, err)
	assert.Equal(t, "curl.zip", v.FileName)
	assert.Equal(t, sw.ID.String()+"/curl.zip", v.FilePath)
	assert.Equal(t, int64(8), v.FileSize)
	assert.Len(t, v.FileHash, 64)

	_, err = c.UploadVersion(ctx, UploadInput{
		SoftwareID: sw.ID, Version: "8.1", FileName: "big.zip", Body: strings.NewReader("123456789"),
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	exists, _ := afero.Exists(fs, sw.ID.String()+"/big.zip")
	assert.False(t, exists)

	_, err = c.UploadVersion(ctx, UploadInput{SoftwareID: uuid.New(), Version: "1", FileName: "a.zip", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDeleteSoftwareIgnoresMissingBlobs(t *testing.T) {
	c, fs, db := testCatalog(t, 1<<20)
	ctx := context.Background()
	sw := &models.Software{Name: "putty"}
	require.NoError(t, c.CreateSoftware(ctx, sw))

	kept, err := c.UploadVersion(ctx, UploadInput{SoftwareID: sw.ID, Version: "1", FileName: "putty.exe", Body: strings.NewReader("a")})
	require.NoError(t, err)
	require.NoError(t, c.CreateVersion(ctx, &models.SoftwareVersion{
		SoftwareID: sw.ID, Version: "0.9", FilePath: sw.ID.String() + "/gone.exe", FileName: "gone.exe",
	}))

	_, err = c.DeleteSoftware(ctx, sw.ID)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.SoftwareVersion{}).Where("software_id = ?", sw.ID).Count(&count).Error)
	assert.Zero(t, count)
	exists, _ := afero.Exists(fs, kept.FilePath)
	assert.False(t, exists)

	_, err = c.GetSoftware(ctx, sw.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = c.DeleteSoftware(ctx, sw.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRecordDownload(t *testing.T) {
	c, _, db := testCatalog(t, 1<<20)
	ctx := context.Background()
	sw := &models.Software{Name: "firefox"}
	require.NoError(t, c.CreateSoftware(ctx, sw))
	v, err := c.UploadVersion(ctx, UploadInput{SoftwareID: sw.ID, Version: "120", FileName: "ff.exe", Body: strings.NewReader("ff")})
	require.NoError(t, err)

	user := uuid.New()
	got, err := c.RecordDownload(ctx, v.ID, user, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.DownloadCount)

	var logs []models.DownloadLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, user, logs[0].UserID)
	assert.Equal(t, "10.0.0.1", logs[0].IPAddress)

	_, err = c.RecordDownload(ctx, uuid.New(), user, "10.0.0.1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	stats, err := NewDownloadStore(db).Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalDownloads)
	assert.Equal(t, int64(1), stats.UniqueUsers)
	assert.Equal(t, []TopSoftware{{Name: "firefox", Count: 1}}, stats.TopSoftware)

	rows, total, err := NewDownloadStore(db).Logs(ctx, DownloadFilter{UserID: &user})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, rows, 1)
	assert.Equal(t, "firefox", rows[0].SoftwareName)
	assert.Equal(t, "120", rows[0].Version)

	other := uuid.New()
	_, total, err = NewDownloadStore(db).Logs(ctx, DownloadFilter{UserID: &other})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestListSoftwareAggregates(t *testing.T) {
	c, _, _ := testCatalog(t, 1<<20)
	ctx := context.Background()
	for _, name := range []string{"alpha", "beta", "gamma"} {
		require.NoError(t, c.CreateSoftware(ctx, &models.Software{Name: name, Category: "tools"}))
	}
	beta, err := c.FindSoftwareByName(ctx, "beta")
	require.NoError(t, err)
	for _, label := range []string{"1.0", "2.0"} {
		_, err := c.UploadVersion(ctx, UploadInput{SoftwareID: beta.ID, Version: label, FileName: "beta-" + label + ".zip", Body: bytes.NewReader([]byte(label))})
		require.NoError(t, err)
	}

	versions, err := c.ListVersions(ctx, beta.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.ElementsMatch(t, []string{"1.0", "2.0"}, []string{versions[0].Version, versions[1].Version})
	_, err = c.ListVersions(ctx, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	list, total, err := c.ListSoftware(ctx, SoftwareFilter{Search: "bet"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, int64(2), list[0].VersionCount)
	assert.Equal(t, "2.0", list[0].LatestVersion)

	list, total, err = c.ListSoftware(ctx, SoftwareFilter{Category: "tools", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, list, 2)

	cats, err := c.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"tools"}, cats)
}

func TestUploadLogo(t *testing.T) {
	c, fs, _ := testCatalog(t, 1<<20)
	ctx := context.Background()
	sw := &models.Software{Name: "gimp"}
	require.NoError(t, c.CreateSoftware(ctx, sw))

	_, err := c.UploadLogo(ctx, sw.ID, "logo.exe", strings.NewReader("x"))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	first, err := c.UploadLogo(ctx, sw.ID, "logo.PNG", strings.NewReader("png"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first.Logo, "logos/"+sw.ID.String()+"_"))
	assert.True(t, strings.HasSuffix(first.Logo, ".png"))
	firstKey := first.Logo

	second, err := c.UploadLogo(ctx, sw.ID, "logo.svg", strings.NewReader("<svg/>"))
	require.NoError(t, err)
	exists, _ := afero.Exists(fs, firstKey)
	assert.False(t, exists)

	rc, err := c.OpenLogo(ctx, strings.TrimPrefix(second.Logo, "logos/"))
	require.NoError(t, err)
	b, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "<svg/>", string(b))

	_, err = c.OpenLogo(ctx, "../"+sw.ID.String()+"/x")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCategories(t *testing.T) {
	c, _, db := testCatalog(t, 1<<20)
	ctx := context.Background()
	cats := NewCategoryStore(db)

	cat := &models.Category{Name: "dev"}
	require.NoError(t, cats.Create(ctx, cat))
	assert.ErrorIs(t, cats.Create(ctx, &models.Category{Name: "dev"}), apperr.ErrConflict)
	require.NoError(t, c.CreateSoftware(ctx, &models.Software{Name: "vim", Category: "dev"}))

	assert.ErrorIs(t, cats.Delete(ctx, cat.ID), apperr.ErrValidation)

	name := "development"
	_, err := cats.Update(ctx, cat.ID, CategoryUpdate{Name: &name})
	require.NoError(t, err)
	vim, err := c.FindSoftwareByName(ctx, "vim")
	require.NoError(t, err)
	assert.Equal(t, "development", vim.Category)

	empty := &models.Category{Name: "empty"}
	require.NoError(t, cats.Create(ctx, empty))
	require.NoError(t, cats.Delete(ctx, empty.ID))
	assert.ErrorIs(t, cats.Delete(ctx, empty.ID), apperr.ErrNotFound)
}

func TestUserAdministration(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	users := NewUserStore(db)

	admin, err := users.ByUsername(ctx, "admin")
	require.NoError(t, err)
	bob, err := users.Create(ctx, NewUser{Username: "bob", Email: "bob@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, bob.Role)

	_, err = users.Create(ctx, NewUser{Username: "bob2", Email: "bob@example.com", Password: "pw"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	ops := models.RoleOps
	_, err = users.Update(ctx, admin.ID, admin.ID, UserUpdate{Role: &ops})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	updated, err := users.Update(ctx, admin.ID, bob.ID, UserUpdate{Role: &ops})
	require.NoError(t, err)
	assert.Equal(t, models.RoleOps, updated.Role)

	inactive := false
	_, err = users.Update(ctx, admin.ID, bob.ID, UserUpdate{IsActive: &inactive})
	require.NoError(t, err)
	_, err = users.Authenticate(ctx, "bob", "pw")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	assert.ErrorIs(t, users.Delete(ctx, admin.ID, admin.ID), apperr.ErrValidation)
	assert.ErrorIs(t, users.Delete(ctx, admin.ID, models.SystemUserID), apperr.ErrForbidden)
	require.NoError(t, users.Delete(ctx, admin.ID, bob.ID))
	assert.ErrorIs(t, users.Delete(ctx, admin.ID, bob.ID), apperr.ErrNotFound)

	list, total, err := users.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "admin", list[0].Username)
}

func TestRequestListScoping(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	reqs := NewRequestStore(db)
	users := NewUserStore(db)

	alice, err := users.Create(ctx, NewUser{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	carol, err := users.Create(ctx, NewUser{Username: "carol", Password: "pw"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, reqs.Create(ctx, &models.SoftwareRequest{SoftwareName: "a", Version: "1", DownloadURL: "https://x/a", ApplicantID: alice.ID}))
	}
	require.NoError(t, reqs.Create(ctx, &models.SoftwareRequest{SoftwareName: "c", Version: "1", DownloadURL: "https://x/c", ApplicantID: carol.ID}))

	rows, total, err := reqs.List(ctx, RequestFilter{ApplicantID: &alice.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	for _, r := range rows {
		assert.Equal(t, "alice", r.ApplicantName)
		assert.Equal(t, models.StatusPending, r.Status)
	}

	rows, total, err = reqs.List(ctx, RequestFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, rows, 2)

	_, total, err = reqs.List(ctx, RequestFilter{Status: models.StatusApproved})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestAuditRecord(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	audit := NewAuditStore(db, zerolog.Nop())

	audit.Record(ctx, AuditEntry{UserID: models.SystemUserID, Action: "review", ResourceType: "request", ResourceID: "42", Details: map[string]string{"decision": "approved"}})
	logs, total, err := audit.List(ctx, AuditFilter{Action: "review"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.JSONEq(t, `{"decision":"approved"}`, string(logs[0].Details))
}

func TestDashboardStats(t *testing.T) {
	c, _, db := testCatalog(t, 1<<20)
	ctx := context.Background()
	require.NoError(t, c.CreateSoftware(ctx, &models.Software{Name: "git"}))

	admin, err := NewUserStore(db).ByUsername(ctx, "admin")
	require.NoError(t, err)
	require.NoError(t, NewRequestStore(db).Create(ctx, &models.SoftwareRequest{
		SoftwareName: "curl", Version: "8", DownloadURL: "https://example.com/curl.exe", ApplicantID: admin.ID,
	}))

	d, err := DashboardStats(ctx, db, true)
	require.NoError(t, err)
	assert.Equal(t, &Dashboard{SoftwareCount: 1, PendingRequests: 1, UserCount: 1}, d)

	d, err = DashboardStats(ctx, db, false)
	require.NoError(t, err)
	assert.Equal(t, &Dashboard{SoftwareCount: 1}, d)
}
