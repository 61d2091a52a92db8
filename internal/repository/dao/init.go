package dao

import "gorm.io/gorm"

func InitTables(db *gorm.DB) error {
	return db.AutoMigrate(
		&Association{},
		&Member{},
		&Badge{},
		&BadgeAccount{},
		&Transaction{},
		&Category{},
		&Product{},
	)
}
