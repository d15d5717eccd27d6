package graphql

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/maltedev/sorare-alert-bot/internal/models"
)

const liveOffersQuery = `query PlayerLiveOffers($slug: String!, $rarity: Rarity!) {
  football {
    player(slug: $slug) {
      cards(rarities: [$rarity], onSale: true, first: 50) {
        nodes {
          slug
          liveSingleSaleOffer {
            receiverSide { amounts { eurCents } }
          }
        }
      }
    }
  }
}`

const tokenPricesQuery = `query PlayerTokenPrices($slug: String!, $rarity: Rarity!) {
  tokens {
    tokenPrices(playerSlug: $slug, rarity: $rarity, first: 50) {
      date
      deal { __typename }
      amounts { eurCents }
      card { slug serialNumber seasonYear }
      buyer { nickname }
      seller { nickname }
    }
  }
}`

type amounts struct {
	EurCents *int64 `json:"eurCents"`
}

func (a amounts) price() models.Price {
	if a.EurCents == nil {
		return models.UnknownPrice()
	}
	return models.NewPrice(float64(*a.EurCents) / 100)
}

// Offer is a live single-sale offer for one card.
type Offer struct {
	CardSlug string
	Price    models.Price
}

// LiveOffers returns the live single-sale offers for a player's cards of one rarity.
func (c *Client) LiveOffers(ctx context.Context, slug string, rarity models.Rarity) ([]Offer, error) {
	var data struct {
		Football struct {
			Player *struct {
				Cards struct {
					Nodes []struct {
						Slug                string `json:"slug"`
						LiveSingleSaleOffer *struct {
							ReceiverSide struct {
								Amounts amounts `json:"amounts"`
							} `json:"receiverSide"`
						} `json:"liveSingleSaleOffer"`
					} `json:"nodes"`
				} `json:"cards"`
			} `json:"player"`
		} `json:"football"`
	}

	vars := map[string]any{"slug": slug, "rarity": rarity.GraphQLEnum()}
	if err := c.Query(ctx, "PlayerLiveOffers", liveOffersQuery, vars, &data); err != nil {
		return nil, err
	}

	if data.Football.Player == nil {
		return nil, nil
	}

	var offers []Offer
	for _, node := range data.Football.Player.Cards.Nodes {
		if node.LiveSingleSaleOffer == nil {
			continue
		}
		offers = append(offers, Offer{
			CardSlug: node.Slug,
			Price:    node.LiveSingleSaleOffer.ReceiverSide.Amounts.price(),
		})
	}
	return offers, nil
}

// SalesHistory returns completed sales for a player's cards of one rarity.
// An API that rejects the query for the tier yields an empty list, not an error.
func (c *Client) SalesHistory(ctx context.Context, slug string, rarity models.Rarity) ([]models.SaleRecord, error) {
	var data struct {
		Tokens struct {
			TokenPrices []struct {
				Date time.Time `json:"date"`
				Deal struct {
					Typename string `json:"__typename"`
				} `json:"deal"`
				Amounts amounts `json:"amounts"`
				Card    struct {
					Slug         string `json:"slug"`
					SerialNumber int    `json:"serialNumber"`
					SeasonYear   int    `json:"seasonYear"`
				} `json:"card"`
				Buyer  *nickname `json:"buyer"`
				Seller *nickname `json:"seller"`
			} `json:"tokenPrices"`
		} `json:"tokens"`
	}

	vars := map[string]any{"slug": slug, "rarity": rarity.GraphQLEnum()}
	err := c.Query(ctx, "PlayerTokenPrices", tokenPricesQuery, vars, &data)
	var respErr *ResponseError
	if errors.As(err, &respErr) {
		c.logger.Info("sales history not available", "slug", slug, "rarity", rarity, "error", respErr.Error())
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	sales := make([]models.SaleRecord, 0, len(data.Tokens.TokenPrices))
	for _, tp := range data.Tokens.TokenPrices {
		price, ok := tp.Amounts.price().Value()
		if !ok {
			continue
		}
		sale := models.SaleRecord{
			Price:  price,
			Type:   dealType(tp.Deal.Typename),
			Date:   tp.Date,
			Buyer:  tp.Buyer.String(),
			Seller: tp.Seller.String(),
		}
		if tp.Card.SerialNumber > 0 {
			sale.Serial = strconv.Itoa(tp.Card.SerialNumber)
		}
		if tp.Card.SeasonYear > 0 {
			sale.Season = strconv.Itoa(tp.Card.SeasonYear)
		}
		sales = append(sales, sale)
	}
	return sales, nil
}

type nickname struct {
	Nickname string `json:"nickname"`
}

func (n *nickname) String() string {
	if n == nil {
		return ""
	}
	return n.Nickname
}

func dealType(typename string) string {
	switch {
	case strings.Contains(typename, "Auction"):
		return "auction"
	case strings.Contains(typename, "Offer"):
		return "offer"
	case typename == "":
		return "sale"
	default:
		return strings.ToLower(typename)
	}
}
