package order

// Customer identity as collected by the model across turns.
type Customer struct {
	Name    string `mapstructure:"name"`
	Phone   string `mapstructure:"phone"`
	Email   string `mapstructure:"email"`
	Address string `mapstructure:"address"`
}

// Contact returns the first usable contact channel.
func (c Customer) Contact() string {
	if c.Phone != "" {
		return c.Phone
	}
	return c.Email
}

type Item struct {
	Name     string  `mapstructure:"name"`
	Quantity int     `mapstructure:"quantity"`
	Price    float64 `mapstructure:"price"`
	Notes    string  `mapstructure:"notes"`
}

type Delivery struct {
	Address string `mapstructure:"address"`
	Method  string `mapstructure:"method"`
	Time    string `mapstructure:"time"`
}

type Payment struct {
	Method string `mapstructure:"method"`
}

// OrderData is the accumulated place-order draft. It lives only inside one
// turn's webhook_data; the model rebuilds it from history every turn.
type OrderData struct {
	Complete bool           `mapstructure:"complete"`
	Items    []Item         `mapstructure:"items"`
	Customer Customer       `mapstructure:"customer"`
	Delivery Delivery       `mapstructure:"delivery"`
	Payment  Payment        `mapstructure:"payment"`
	Notes    string         `mapstructure:"notes"`
	Metadata map[string]any `mapstructure:"metadata"`
}

// UpdateData describes a change to an existing order, keyed by order code.
type UpdateData struct {
	Complete   bool           `mapstructure:"complete"`
	OrderCode  string         `mapstructure:"order_code"`
	UpdateType string         `mapstructure:"update_type"`
	Changes    map[string]any `mapstructure:"changes"`
	Customer   Customer       `mapstructure:"customer"`
	Notes      string         `mapstructure:"notes"`
}

// CheckQuantityData is a manual inventory check request. Consented must be an
// explicit yes from the customer before staff are pinged.
type CheckQuantityData struct {
	Complete          bool           `mapstructure:"complete"`
	Consented         bool           `mapstructure:"consented"`
	ItemName          string         `mapstructure:"item_name"`
	RequestedQuantity int            `mapstructure:"requested_quantity"`
	Customer          Customer       `mapstructure:"customer"`
	Specifications    map[string]any `mapstructure:"specifications"`
}
