package models

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/BRRODORTEGA/SOFA-sub000/internal/grade"
)

type Category struct {
	ID   uuid.UUID `gorm:"primaryKey"         json:"id"`
	Name string    `gorm:"uniqueIndex;not null" json:"name"`
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

type Family struct {
	ID   uuid.UUID `gorm:"primaryKey"         json:"id"`
	Name string    `gorm:"uniqueIndex;not null" json:"name"`
}

func (f *Family) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

type Product struct {
	ID           uuid.UUID `gorm:"primaryKey"                 json:"id"`
	Name         string    `gorm:"uniqueIndex;not null"       json:"name"`
	FamilyID     uuid.UUID `gorm:"index;not null"             json:"family_id"`
	CategoryID   uuid.UUID `gorm:"index;not null"             json:"category_id"`
	SideRequired bool      `gorm:"not null;default:false"     json:"side_required"`

	Fabrics  []Fabric      `gorm:"many2many:product_fabrics" json:"fabrics,omitempty"`
	Variants []SizeVariant `gorm:"foreignKey:ProductID"      json:"variants,omitempty"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

type Fabric struct {
	ID    uuid.UUID   `gorm:"primaryKey"           json:"id"`
	Name  string      `gorm:"uniqueIndex;not null" json:"name"`
	Grade grade.Grade `gorm:"size:16;not null"     json:"grade"`
}

func (f *Fabric) BeforeCreate(tx *gorm.DB) error {
	if !f.Grade.Valid() {
		return fmt.Errorf("fabric %q: %w", f.Name, grade.ErrUnknownGrade)
	}
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// Column is the price column this fabric is sold from.
func (f Fabric) Column() grade.Column {
	return grade.Resolve(f.Grade)
}

// Dimensions are shared by size variants and the price rows derived from them.
// Consumptions are in metres.
type Dimensions struct {
	Width              float64 `gorm:"not null;default:0" json:"width"`
	Depth              float64 `gorm:"not null;default:0" json:"depth"`
	Height             float64 `gorm:"not null;default:0" json:"height"`
	SeatWidth          float64 `gorm:"not null;default:0" json:"seat_width"`
	SeatHeight         float64 `gorm:"not null;default:0" json:"seat_height"`
	ArmWidth           float64 `gorm:"not null;default:0" json:"arm_width"`
	FabricConsumption  float64 `gorm:"not null;default:0" json:"fabric_consumption"`
	LeatherConsumption float64 `gorm:"not null;default:0" json:"leather_consumption"`
}

type SizeVariant struct {
	ID        uuid.UUID `gorm:"primaryKey"                                json:"id"`
	ProductID uuid.UUID `gorm:"uniqueIndex:idx_variant_measure;not null"  json:"product_id"`
	MeasureCM int       `gorm:"uniqueIndex:idx_variant_measure;not null"  json:"measure_cm"`
	Dimensions
}

func (v *SizeVariant) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
