package tracsdk

import "context"

// CreateTicket files a new ticket and returns its id. Notification mails
// are suppressed.
func (c *Client) CreateTicket(ctx context.Context, summary, description string, attrs map[string]string) (int, error) {
	if attrs == nil {
		attrs = map[string]string{}
	}
	result, err := c.call(ctx, "ticket.create", summary, description, attrs, false)
	if err != nil {
		return 0, err
	}
	return result.IntVal(), nil
}
