package moysklad

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client клиент REST API МойСклад (remap 1.2) с авторизацией по bearer-токену
type Client struct {
	BaseURL string
	Token   string
	client  *http.Client
}

// NewClient создает новый экземпляр клиента МойСклад
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Counterparty контрагент МойСклад
type Counterparty struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Phone    string  `json:"phone"`
	Archived bool   `json:"archived"`

	// Остаток по счёту внутри сущности контрагента. Запасной источник
	// баланса на случай недоступности отчёта.
	AccountBalance float64 `json:"balance"`
}

// CounterpartyReport строка отчёта по взаиморасчётам контрагента.
// Суммы приходят в копейках.
type CounterpartyReport struct {
	Balance float64 `json:"balance"`
	Profit  float64 `json:"profit"`
}

// Document документ (заказ, отгрузка, платёж), привязанный к контрагенту
type Document struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Moment  string  `json:"moment"`
	Sum     float64 `json:"sum"`
	Deleted bool    `json:"deleted,omitempty"`
}

// Типы документов, поддерживаемые ListDocuments
const (
	DocCustomerOrder = "customerorder"
	DocDemand        = "demand"
	DocPaymentIn     = "paymentin"
)

// collection обёртка коллекционного ответа МойСклад
type collection[T any] struct {
	Meta struct {
		Size   int `json:"size"`
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
	} `json:"meta"`
	Rows []T `json:"rows"`
}

// get выполняет GET-запрос и возвращает тело ответа
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.BaseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Accept", "application/json;charset=utf-8")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Printf("[MoySklad] Запрос %s вернул статус %d", path, resp.StatusCode)
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	return body, nil
}

// FindCounterpartyByPhone ищет контрагента по телефону.
// Возвращает (nil, nil) если совпадений нет.
func (c *Client) FindCounterpartyByPhone(ctx context.Context, phone string) (*Counterparty, error) {
	params := url.Values{}
	params.Set("search", phone)
	params.Set("limit", "1")

	body, err := c.get(ctx, "/entity/counterparty", params)
	if err != nil {
		return nil, err
	}

	var result collection[Counterparty]
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("ошибка декодирования ответа: %w", err)
	}

	if len(result.Rows) == 0 {
		return nil, nil
	}
	return &result.Rows[0], nil
}

// GetCounterparty получает контрагента по идентификатору
func (c *Client) GetCounterparty(ctx context.Context, id string) (*Counterparty, error) {
	body, err := c.get(ctx, "/entity/counterparty/"+id, nil)
	if err != nil {
		return nil, err
	}

	var cp Counterparty
	if err := json.Unmarshal(body, &cp); err != nil {
		return nil, fmt.Errorf("ошибка декодирования ответа: %w", err)
	}
	return &cp, nil
}

// ListCounterparties получает страницу контрагентов с сортировкой по имени.
// Страница короче limit означает конец коллекции.
func (c *Client) ListCounterparties(ctx context.Context, limit, offset int) ([]Counterparty, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("order", "name,asc")

	body, err := c.get(ctx, "/entity/counterparty", params)
	if err != nil {
		return nil, err
	}

	var result collection[Counterparty]
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("ошибка декодирования ответа: %w", err)
	}
	return result.Rows, nil
}

// GetCounterpartyReport получает отчёт по взаиморасчётам контрагента
func (c *Client) GetCounterpartyReport(ctx context.Context, id string) (*CounterpartyReport, error) {
	body, err := c.get(ctx, "/report/counterparty/"+id, nil)
	if err != nil {
		return nil, err
	}

	var report CounterpartyReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("ошибка декодирования ответа: %w", err)
	}
	return &report, nil
}

// ListDocuments получает документы контрагента за период с пагинацией.
// docType — один из DocCustomerOrder, DocDemand, DocPaymentIn.
func (c *Client) ListDocuments(ctx context.Context, docType, counterpartyID string, from, to time.Time, limit, offset int) ([]Document, error) {
	switch docType {
	case DocCustomerOrder, DocDemand, DocPaymentIn:
	default:
		return nil, fmt.Errorf("неизвестный тип документа: %s", docType)
	}

	filter := fmt.Sprintf("agent=%s/entity/counterparty/%s;moment>=%s;moment<=%s",
		c.BaseURL, counterpartyID,
		from.Format("2006-01-02 15:04:05"), to.Format("2006-01-02 15:04:05"))

	params := url.Values{}
	params.Set("filter", filter)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("order", "moment,desc")

	body, err := c.get(ctx, "/entity/"+docType, params)
	if err != nil {
		return nil, err
	}

	var result collection[Document]
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("ошибка декодирования ответа: %w", err)
	}
	return result.Rows, nil
}
