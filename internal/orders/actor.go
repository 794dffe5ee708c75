package orders

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/homecook-backend/pkg/db/models"
	"github.com/angelmondragon/homecook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/homecook-backend/pkg/errors"
)

// Actor is the authenticated caller of a transition. Sellers carry the
// producer they act for.
type Actor struct {
	Role       enums.ActorRole
	UserID     uuid.UUID
	ProducerID uuid.UUID
}

func Buyer(userID uuid.UUID) Actor {
	return Actor{Role: enums.ActorBuyer, UserID: userID}
}

func Seller(userID, producerID uuid.UUID) Actor {
	return Actor{Role: enums.ActorSeller, UserID: userID, ProducerID: producerID}
}

func Admin(userID uuid.UUID) Actor {
	return Actor{Role: enums.ActorAdmin, UserID: userID}
}

func System() Actor {
	return Actor{Role: enums.ActorSystem}
}

func (a Actor) ownsAsBuyer(order *models.Order) bool {
	return a.Role == enums.ActorBuyer && a.UserID != uuid.Nil && a.UserID == order.BuyerID
}

func (a Actor) ownsAsSeller(order *models.Order) bool {
	return a.Role == enums.ActorSeller && a.ProducerID != uuid.Nil && a.ProducerID == order.ProducerID
}

// authorize passes when the actor matches at least one rule.
func authorize(actor Actor, order *models.Order, rules ...func(Actor, *models.Order) bool) error {
	for _, rule := range rules {
		if rule(actor, order) {
			return nil
		}
	}
	return pkgerrors.Newf(pkgerrors.CodeForbidden, "%s is not allowed to perform this transition", actor.Role).
		WithDetails(map[string]any{"order_id": order.ID.String(), "actor_role": string(actor.Role)})
}

func ownerBuyer(a Actor, o *models.Order) bool { return a.ownsAsBuyer(o) }
func ownerSeller(a Actor, o *models.Order) bool { return a.ownsAsSeller(o) }
func anyAdmin(a Actor, _ *models.Order) bool { return a.Role == enums.ActorAdmin }
func anySystem(a Actor, _ *models.Order) bool { return a.Role == enums.ActorSystem }
