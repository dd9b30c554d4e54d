package services

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"marvelalbum/models"
	"marvelalbum/utils"
)

const albumBatchSize = 500

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func emailTaken(db *gorm.DB, email string, exceptID uint) (bool, error) {
	var count int64
	q := db.Model(&models.User{}).Where("email = ?", email)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// hashPassword rejects passwords bcrypt cannot hash. The limit is in bytes,
// so multi-byte passwords can pass the length validation and still fail here.
func hashPassword(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, utils.BadRequest("Password must be at most 72 bytes")
	}
	if err != nil {
		return nil, utils.Internal("Failed to hash password", err)
	}
	return hash, nil
}

// RegisterUser creates a user holding startingCredits and an album row at
// quantity zero for every catalog card.
func RegisterUser(ctx context.Context, db *gorm.DB, cardIDs []int, startingCredits int, in models.RegisterInput) (*models.User, error) {
	email := normalizeEmail(in.Email)

	taken, err := emailTaken(db.WithContext(ctx), email, 0)
	if err != nil {
		return nil, utils.Internal("Failed to check email", err)
	}
	if taken {
		return nil, utils.Conflict("Email already exists")
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Username:          strings.TrimSpace(in.Username),
		Email:             email,
		PasswordHash:      string(hash),
		FavoriteSuperhero: strings.TrimSpace(in.FavoriteSuperhero),
		Credits:           startingCredits,
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}

		album := make([]models.AlbumEntry, 0, len(cardIDs))
		for _, id := range cardIDs {
			album = append(album, models.AlbumEntry{UserID: user.ID, CardID: id})
		}
		if len(album) == 0 {
			return nil
		}
		return tx.CreateInBatches(&album, albumBatchSize).Error
	})
	if err != nil {
		// lost a race on the unique email index
		if taken, _ := emailTaken(db.WithContext(ctx), email, 0); taken {
			return nil, utils.Conflict("Email already exists")
		}
		return nil, utils.Internal("Failed to create user", err)
	}

	utils.Log.WithFields(logrus.Fields{
		"user_id": user.ID,
		"cards":   len(cardIDs),
	}).Info("User registered")
	return &user, nil
}

// Authenticate checks email and password. Unknown emails and wrong
// passwords fail the same way.
func Authenticate(ctx context.Context, db *gorm.DB, email, password string) (*models.User, error) {
	var user models.User
	err := db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if isNotFound(err) {
		return nil, utils.Unauthorized("Invalid email or password")
	}
	if err != nil {
		return nil, utils.Internal("Failed to load user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, utils.Unauthorized("Invalid email or password")
	}
	return &user, nil
}

func GetUser(ctx context.Context, db *gorm.DB, userID uint) (*models.User, error) {
	var user models.User
	err := db.WithContext(ctx).First(&user, userID).Error
	if isNotFound(err) {
		return nil, utils.NotFound("User not found")
	}
	if err != nil {
		return nil, utils.Internal("Failed to load user", err)
	}
	return &user, nil
}

func UpdateUser(ctx context.Context, db *gorm.DB, userID uint, in models.UpdateUserInput) (*models.User, error) {
	user, err := GetUser(ctx, db, userID)
	if err != nil {
		return nil, err
	}

	if in.Username != nil {
		user.Username = strings.TrimSpace(*in.Username)
	}
	if in.FavoriteSuperhero != nil {
		user.FavoriteSuperhero = strings.TrimSpace(*in.FavoriteSuperhero)
	}
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		taken, err := emailTaken(db.WithContext(ctx), email, userID)
		if err != nil {
			return nil, utils.Internal("Failed to check email", err)
		}
		if taken {
			return nil, utils.Conflict("Email already exists")
		}
		user.Email = email
	}
	if in.Password != nil {
		hash, err := hashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = string(hash)
	}

	err = db.WithContext(ctx).Model(user).Select("username", "email", "favorite_superhero", "password_hash").Updates(user).Error
	if err != nil {
		if in.Email != nil {
			if taken, _ := emailTaken(db.WithContext(ctx), user.Email, userID); taken {
				return nil, utils.Conflict("Email already exists")
			}
		}
		return nil, utils.Internal("Failed to update user", err)
	}
	return user, nil
}

// DeleteUser removes the user together with their album, proposals and
// offers. Cards other users locked in offers on the user's proposals are
// unlocked.
func DeleteUser(ctx context.Context, db *gorm.DB, userID uint) error {
	if _, err := GetUser(ctx, db, userID); err != nil {
		return err
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var trades []models.Trade
		if err := tx.Preload("Offers.OfferedCards").Where("proposer_id = ?", userID).Find(&trades).Error; err != nil {
			return utils.Internal("Failed to load trades", err)
		}
		for i := range trades {
			if err := restorePendingOffers(tx, trades[i].Offers, ""); err != nil {
				return err
			}
			if err := deleteTradeRows(tx, &trades[i]); err != nil {
				return err
			}
		}

		var offerIDs []string
		if err := tx.Model(&models.Offer{}).Where("user_id = ?", userID).Pluck("id", &offerIDs).Error; err != nil {
			return utils.Internal("Failed to load offers", err)
		}
		if len(offerIDs) > 0 {
			if err := tx.Where("offer_id IN ?", offerIDs).Delete(&models.OfferedCard{}).Error; err != nil {
				return utils.Internal("Failed to delete offers", err)
			}
			if err := tx.Where("id IN ?", offerIDs).Delete(&models.Offer{}).Error; err != nil {
				return utils.Internal("Failed to delete offers", err)
			}
		}

		if err := tx.Where("user_id = ?", userID).Delete(&models.AlbumEntry{}).Error; err != nil {
			return utils.Internal("Failed to delete album", err)
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.Purchase{}).Error; err != nil {
			return utils.Internal("Failed to delete purchases", err)
		}
		if err := tx.Delete(&models.User{}, userID).Error; err != nil {
			return utils.Internal("Failed to delete user", err)
		}

		utils.Log.WithField("user_id", userID).Info("User deleted")
		return nil
	})
}
