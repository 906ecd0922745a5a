package model

// 配送先・請求先住所。チェックアウトと注文に埋め込んで保存する。
type Address struct {
	//宛名
	Name string `gorm:"type:varchar(255)" json:"name" validate:"required,max=255"`

	//郵便番号
	PostalCode string `gorm:"type:varchar(20)" json:"postal_code" validate:"required,max=20"`

	//国コード
	Country string `gorm:"type:varchar(2)" json:"country" validate:"required,len=2"`

	//都道府県・州
	Region string `gorm:"type:varchar(100)" json:"region" validate:"max=100"`

	//市区町村
	City string `gorm:"type:varchar(255)" json:"city" validate:"required,max=255"`

	//番地など
	Line1 string `gorm:"type:varchar(255)" json:"line1" validate:"required,max=255"`

	//建物名など
	Line2 string `gorm:"type:varchar(255)" json:"line2" validate:"max=255"`

	//電話番号
	Phone string `gorm:"type:varchar(30)" json:"phone" validate:"max=30"`
}

func (a Address) IsZero() bool {
	return a == Address{}
}
