package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/taskmaster-hq/taskmaster-api/internal/domain"
)

type taskDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Email       string             `bson:"email"`
	Category    string             `bson:"category"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	Order       int                `bson:"order"`
	CreatedAt   time.Time          `bson:"createdAt"`
}

type userDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Email     string             `bson:"email"`
	Name      string             `bson:"name"`
	Image     string             `bson:"image"`
	IsAdmin   bool               `bson:"isAdmin"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func newTaskDocument(t *domain.Task) taskDocument {
	return taskDocument{
		Email:       t.OwnerID,
		Category:    t.Category,
		Title:       t.Title,
		Description: t.Description,
		Order:       t.Order,
		CreatedAt:   t.CreatedAt,
	}
}

func (d taskDocument) toDomain() *domain.Task {
	return &domain.Task{
		ID:          d.ID.Hex(),
		OwnerID:     d.Email,
		Category:    d.Category,
		Title:       d.Title,
		Description: d.Description,
		Order:       d.Order,
		CreatedAt:   d.CreatedAt.UTC(),
	}
}

func (d userDocument) toDomain() *domain.User {
	return &domain.User{
		ID:        d.ID.Hex(),
		Email:     d.Email,
		Name:      d.Name,
		Image:     d.Image,
		IsAdmin:   d.IsAdmin,
		CreatedAt: d.CreatedAt.UTC(),
	}
}

func partitionFilter(p domain.Partition) bson.M {
	return bson.M{"email": p.OwnerID, "category": p.Category}
}

// conditionalFilter matches a task only while it still belongs to the given
// owner and category.
func conditionalFilter(id primitive.ObjectID, ownerID, category string) bson.M {
	return bson.M{"_id": id, "email": ownerID, "category": category}
}

func updateSet(u domain.TaskUpdate) bson.M {
	set := bson.M{}
	if u.Title != nil {
		set["title"] = *u.Title
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	if u.Category != nil {
		set["category"] = *u.Category
	}
	if u.Order != nil {
		set["order"] = *u.Order
	}
	return set
}
