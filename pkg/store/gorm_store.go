package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"foodshare/pkg/domain"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

const migrateLockID int64 = 36623662

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// GormStore implements Store using GORM on Postgres or SQLite.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB for driver and runs auto-migrations.
func NewGormStore(driver, dsn string) (*GormStore, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if driver == DriverSQLite {
		// a single connection keeps ":memory:" databases shared across calls
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	migrate := func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&UserModel{}, &ListingModel{}, &ClaimModel{}, &DeliveryModel{}, &MessageModel{}, &TagSetModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}
	if driver == DriverPostgres {
		err = withMigrationLock(db, migrate)
	} else {
		err = migrate(db)
	}
	if err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks database connectivity.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

func translateWriteErr(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func first[M any](tx *gorm.DB, dest *M, query string, args ...any) (bool, error) {
	if err := tx.Where(query, args...).First(dest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func requireAffected(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateUser registers a user; usernames are unique.
func (s *GormStore) CreateUser(ctx context.Context, u domain.User) error {
	model := userToModel(u)
	return translateWriteErr(s.db.WithContext(ctx).Create(&model).Error)
}

// GetUser returns a user by ID.
func (s *GormStore) GetUser(ctx context.Context, id string) (domain.User, bool, error) {
	var model UserModel
	ok, err := first(s.db.WithContext(ctx), &model, "id = ?", id)
	if !ok || err != nil {
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByUsername looks up a user by username.
func (s *GormStore) GetUserByUsername(ctx context.Context, username string) (domain.User, bool, error) {
	var model UserModel
	ok, err := first(s.db.WithContext(ctx), &model, "username = ?", username)
	if !ok || err != nil {
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUsersByIDs returns the users that exist among ids.
func (s *GormStore) GetUsersByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	if len(ids) == 0 {
		return []domain.User{}, nil
	}
	var models []UserModel
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// ListUsers returns all users ordered by created_at.
func (s *GormStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	var models []UserModel
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// UpdateUser replaces the mutable user columns.
func (s *GormStore) UpdateUser(ctx context.Context, u domain.User) error {
	res := s.db.WithContext(ctx).Model(&UserModel{}).
		Where("id = ?", u.ID).
		Updates(map[string]any{
			"username": u.Username,
			"password": u.Password,
			"location": u.Location,
		})
	return translateWriteErr(requireAffected(res))
}

// DeleteUser removes a user record only.
func (s *GormStore) DeleteUser(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&UserModel{}, "id = ?", id).Error
}

// CreateListing stores a listing.
func (s *GormStore) CreateListing(ctx context.Context, l domain.Listing) error {
	model := listingToModel(l)
	return translateWriteErr(s.db.WithContext(ctx).Create(&model).Error)
}

// GetListing retrieves a listing by ID.
func (s *GormStore) GetListing(ctx context.Context, id string) (domain.Listing, bool, error) {
	var model ListingModel
	ok, err := first(s.db.WithContext(ctx), &model, "id = ?", id)
	if !ok || err != nil {
		return domain.Listing{}, false, err
	}
	return listingFromModel(model), true, nil
}

// ListListings returns listings newest first.
func (s *GormStore) ListListings(ctx context.Context) ([]domain.Listing, error) {
	return s.listListings(ctx, "created_at DESC")
}

// ListListingsByAuthor returns an author's listings, latest expiration first.
func (s *GormStore) ListListingsByAuthor(ctx context.Context, authorID string) ([]domain.Listing, error) {
	return s.listListings(ctx, "expiration_time DESC", "author_id = ?", authorID)
}

func (s *GormStore) listListings(ctx context.Context, order string, conds ...any) ([]domain.Listing, error) {
	var models []ListingModel
	q := s.db.WithContext(ctx).Order(order)
	if len(conds) > 0 {
		q = q.Where(conds[0], conds[1:]...)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Listing, 0, len(models))
	for _, m := range models {
		res = append(res, listingFromModel(m))
	}
	return res, nil
}

// UpdateListing replaces the mutable listing columns.
func (s *GormStore) UpdateListing(ctx context.Context, l domain.Listing) error {
	res := s.db.WithContext(ctx).Model(&ListingModel{}).
		Where("id = ?", l.ID).
		Updates(map[string]any{
			"food_name":       l.FoodName,
			"expiration_time": l.ExpirationTime,
			"quantity":        l.Quantity,
			"updated_at":      l.UpdatedAt,
		})
	return requireAffected(res)
}

// DeleteListing removes a listing only.
func (s *GormStore) DeleteListing(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&ListingModel{}, "id = ?", id).Error
}

// CreateClaim stores a claim; the unique listing index rejects a second one.
func (s *GormStore) CreateClaim(ctx context.Context, c domain.Claim) error {
	model := claimToModel(c)
	return translateWriteErr(s.db.WithContext(ctx).Create(&model).Error)
}

// GetClaim retrieves a claim by ID.
func (s *GormStore) GetClaim(ctx context.Context, id string) (domain.Claim, bool, error) {
	var model ClaimModel
	ok, err := first(s.db.WithContext(ctx), &model, "id = ?", id)
	if !ok || err != nil {
		return domain.Claim{}, false, err
	}
	return claimFromModel(model), true, nil
}

// GetClaimByListing returns the claim placed on a listing, if any.
func (s *GormStore) GetClaimByListing(ctx context.Context, listingID string) (domain.Claim, bool, error) {
	var model ClaimModel
	ok, err := first(s.db.WithContext(ctx), &model, "listing_id = ?", listingID)
	if !ok || err != nil {
		return domain.Claim{}, false, err
	}
	return claimFromModel(model), true, nil
}

// ListClaims returns claims newest first.
func (s *GormStore) ListClaims(ctx context.Context) ([]domain.Claim, error) {
	return s.listClaims(ctx, "created_at DESC")
}

// ListClaimsByClaimer returns a user's claims in creation order.
func (s *GormStore) ListClaimsByClaimer(ctx context.Context, claimerID string) ([]domain.Claim, error) {
	return s.listClaims(ctx, "created_at ASC", "claimer_id = ?", claimerID)
}

func (s *GormStore) listClaims(ctx context.Context, order string, conds ...any) ([]domain.Claim, error) {
	var models []ClaimModel
	q := s.db.WithContext(ctx).Order(order)
	if len(conds) > 0 {
		q = q.Where(conds[0], conds[1:]...)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Claim, 0, len(models))
	for _, m := range models {
		res = append(res, claimFromModel(m))
	}
	return res, nil
}

// SetClaimStatus updates a claim's status.
func (s *GormStore) SetClaimStatus(ctx context.Context, id string, status domain.ClaimStatus) error {
	res := s.db.WithContext(ctx).Model(&ClaimModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     string(status),
			"updated_at": time.Now().UTC(),
		})
	return requireAffected(res)
}

// DeleteClaim removes a claim.
func (s *GormStore) DeleteClaim(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&ClaimModel{}, "id = ?", id).Error
}

// CreateDelivery stores a delivery; the unique claim index rejects a second one.
func (s *GormStore) CreateDelivery(ctx context.Context, d domain.Delivery) error {
	model := deliveryToModel(d)
	return translateWriteErr(s.db.WithContext(ctx).Create(&model).Error)
}

// GetDelivery retrieves a delivery by ID.
func (s *GormStore) GetDelivery(ctx context.Context, id string) (domain.Delivery, bool, error) {
	var model DeliveryModel
	ok, err := first(s.db.WithContext(ctx), &model, "id = ?", id)
	if !ok || err != nil {
		return domain.Delivery{}, false, err
	}
	return deliveryFromModel(model), true, nil
}

// GetDeliveryByClaim returns the delivery bound to a claim, if any.
func (s *GormStore) GetDeliveryByClaim(ctx context.Context, claimID string) (domain.Delivery, bool, error) {
	var model DeliveryModel
	ok, err := first(s.db.WithContext(ctx), &model, "claim_id = ?", claimID)
	if !ok || err != nil {
		return domain.Delivery{}, false, err
	}
	return deliveryFromModel(model), true, nil
}

// ListDeliveries returns deliveries newest first.
func (s *GormStore) ListDeliveries(ctx context.Context) ([]domain.Delivery, error) {
	return s.listDeliveries(ctx, "created_at DESC")
}

// ListDeliveriesByDeliverer returns a volunteer's deliveries in creation order.
func (s *GormStore) ListDeliveriesByDeliverer(ctx context.Context, delivererID string) ([]domain.Delivery, error) {
	return s.listDeliveries(ctx, "created_at ASC", "deliverer_id = ?", delivererID)
}

func (s *GormStore) listDeliveries(ctx context.Context, order string, conds ...any) ([]domain.Delivery, error) {
	var models []DeliveryModel
	q := s.db.WithContext(ctx).Order(order)
	if len(conds) > 0 {
		q = q.Where(conds[0], conds[1:]...)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Delivery, 0, len(models))
	for _, m := range models {
		res = append(res, deliveryFromModel(m))
	}
	return res, nil
}

// SetDeliveryStatus updates a delivery's status.
func (s *GormStore) SetDeliveryStatus(ctx context.Context, id string, status domain.DeliveryStatus) error {
	res := s.db.WithContext(ctx).Model(&DeliveryModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     string(status),
			"updated_at": time.Now().UTC(),
		})
	return requireAffected(res)
}

// DeleteDelivery removes a delivery.
func (s *GormStore) DeleteDelivery(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&DeliveryModel{}, "id = ?", id).Error
}

// DeleteDeliveriesByClaim removes the deliveries bound to a claim.
func (s *GormStore) DeleteDeliveriesByClaim(ctx context.Context, claimID string) error {
	return s.db.WithContext(ctx).Delete(&DeliveryModel{}, "claim_id = ?", claimID).Error
}

// CreateMessage records a message.
func (s *GormStore) CreateMessage(ctx context.Context, msg domain.Message) error {
	model := messageToModel(msg)
	return translateWriteErr(s.db.WithContext(ctx).Create(&model).Error)
}

// GetMessage retrieves a message by ID.
func (s *GormStore) GetMessage(ctx context.Context, id string) (domain.Message, bool, error) {
	var model MessageModel
	ok, err := first(s.db.WithContext(ctx), &model, "id = ?", id)
	if !ok || err != nil {
		return domain.Message{}, false, err
	}
	return messageFromModel(model), true, nil
}

// ListMessages returns messages from sender to receiver ordered by (sent_at, seq).
func (s *GormStore) ListMessages(ctx context.Context, senderID, receiverID string) ([]domain.Message, error) {
	var models []MessageModel
	if err := s.db.WithContext(ctx).
		Where("sender_id = ? AND receiver_id = ?", senderID, receiverID).
		Order("sent_at ASC").Order("seq ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Message, 0, len(models))
	for _, m := range models {
		res = append(res, messageFromModel(m))
	}
	return res, nil
}

// DeleteMessage removes a message.
func (s *GormStore) DeleteMessage(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&MessageModel{}, "id = ?", id).Error
}

// GetTagSet returns the tag set for a listing.
func (s *GormStore) GetTagSet(ctx context.Context, listingID string) (domain.TagSet, bool, error) {
	var model TagSetModel
	ok, err := first(s.db.WithContext(ctx), &model, "listing_id = ?", listingID)
	if !ok || err != nil {
		return domain.TagSet{}, false, err
	}
	return tagSetFromModel(model), true, nil
}

// SaveTagSet creates or replaces the tag set for a listing.
func (s *GormStore) SaveTagSet(ctx context.Context, t domain.TagSet) error {
	model := tagSetToModel(t)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "listing_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"tags"}),
	}).Create(&model).Error
}

// ListTagSets returns every tag set ordered by listing ID.
func (s *GormStore) ListTagSets(ctx context.Context) ([]domain.TagSet, error) {
	var models []TagSetModel
	if err := s.db.WithContext(ctx).Order("listing_id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.TagSet, 0, len(models))
	for _, m := range models {
		res = append(res, tagSetFromModel(m))
	}
	return res, nil
}

// DeleteTagSet removes the tag set of a listing.
func (s *GormStore) DeleteTagSet(ctx context.Context, listingID string) error {
	return s.db.WithContext(ctx).Delete(&TagSetModel{}, "listing_id = ?", listingID).Error
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:        u.ID,
		Username:  u.Username,
		Password:  u.Password,
		Role:      string(u.Role),
		Location:  u.Location,
		CreatedAt: u.CreatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:        m.ID,
		Username:  m.Username,
		Password:  m.Password,
		Role:      domain.UserRole(m.Role),
		Location:  m.Location,
		CreatedAt: m.CreatedAt,
	}
}

func listingToModel(l domain.Listing) ListingModel {
	return ListingModel{
		ID:             l.ID,
		AuthorID:       l.AuthorID,
		FoodName:       l.FoodName,
		ExpirationTime: l.ExpirationTime,
		Quantity:       l.Quantity,
		CreatedAt:      l.CreatedAt,
		UpdatedAt:      l.UpdatedAt,
	}
}

func listingFromModel(m ListingModel) domain.Listing {
	return domain.Listing{
		ID:             m.ID,
		AuthorID:       m.AuthorID,
		FoodName:       m.FoodName,
		ExpirationTime: m.ExpirationTime,
		Quantity:       m.Quantity,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func claimToModel(c domain.Claim) ClaimModel {
	return ClaimModel{
		ID:           c.ID,
		ListingID:    c.ListingID,
		ClaimerID:    c.ClaimerID,
		Method:       string(c.Method),
		Status:       string(c.Status),
		Address:      c.Address,
		Instructions: c.Instructions,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func claimFromModel(m ClaimModel) domain.Claim {
	return domain.Claim{
		ID:           m.ID,
		ListingID:    m.ListingID,
		ClaimerID:    m.ClaimerID,
		Method:       domain.ClaimMethod(m.Method),
		Status:       domain.ClaimStatus(m.Status),
		Address:      m.Address,
		Instructions: m.Instructions,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func deliveryToModel(d domain.Delivery) DeliveryModel {
	return DeliveryModel{
		ID:          d.ID,
		ClaimID:     d.ClaimID,
		DelivererID: d.DelivererID,
		Status:      string(d.Status),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func deliveryFromModel(m DeliveryModel) domain.Delivery {
	return domain.Delivery{
		ID:          m.ID,
		ClaimID:     m.ClaimID,
		DelivererID: m.DelivererID,
		Status:      domain.DeliveryStatus(m.Status),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func messageToModel(msg domain.Message) MessageModel {
	return MessageModel{
		ID:         msg.ID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Content:    msg.Content,
		SentAt:     msg.SentAt,
		Seq:        msg.Seq,
	}
}

func messageFromModel(m MessageModel) domain.Message {
	return domain.Message{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		SentAt:     m.SentAt,
		Seq:        m.Seq,
	}
}

func tagSetToModel(t domain.TagSet) TagSetModel {
	tags := datatypes.JSONSlice[string](append([]string{}, t.Tags...))
	return TagSetModel{ID: t.ID, ListingID: t.ListingID, Tags: tags}
}

func tagSetFromModel(m TagSetModel) domain.TagSet {
	return domain.TagSet{ID: m.ID, ListingID: m.ListingID, Tags: append([]string{}, m.Tags...)}
}
