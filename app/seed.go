package app

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"auction-bidding-api/internal/common"
	"auction-bidding-api/internal/entity"
	"auction-bidding-api/internal/repo/memdb"

	"github.com/google/uuid"
)

// seedFile is the layout of MEMORY_SEED_FILE. Auctions and paid deposits
// normally come from the product and payment services, which do not exist
// in memory mode.
type seedFile struct {
	Auctions []struct {
		Id        uuid.UUID `json:"id"`
		Name      string    `json:"name"`
		ProductId uuid.UUID `json:"productId"`
		StartDate time.Time `json:"startDate"`
		EndDate   time.Time `json:"endDate"`
		PriceStep int64     `json:"priceStep"`
		Status    string    `json:"status"`
	} `json:"auctions"`
	Deposits []struct {
		AuctionId uuid.UUID `json:"auctionId"`
		BidderId  uuid.UUID `json:"bidderId"`
	} `json:"deposits"`
}

func seedMemoryStore(store *memdb.Store, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var seed seedFile
	if err := json.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("malformed seed file %s: %w", path, err)
	}

	for _, a := range seed.Auctions {
		if !a.StartDate.Before(a.EndDate) {
			return fmt.Errorf("auction %s: start date must be before end date", a.Id)
		}
		status := a.Status
		if status == "" {
			status = common.AuctionPending
		}
		store.PutAuction(entity.Auction{
			Id:        a.Id,
			Name:      a.Name,
			ProductId: a.ProductId,
			StartDate: a.StartDate.UTC(),
			EndDate:   a.EndDate.UTC(),
			PriceStep: a.PriceStep,
			Status:    status,
			CreatedAt: time.Now().UTC(),
		})
	}
	for _, d := range seed.Deposits {
		store.PutDeposit(d.AuctionId, d.BidderId)
	}

	return nil
}
