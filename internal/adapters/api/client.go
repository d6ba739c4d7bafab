package api

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// Client is a typed client for the auction service
type Client struct {
	placeBid   *connect.Client[PlaceBidRequest, PlaceBidResponse]
	listItems  *connect.Client[ListItemsRequest, ListItemsResponse]
	getItem    *connect.Client[GetItemRequest, GetItemResponse]
	resetAll   *connect.Client[ResetAllRequest, ResetAllResponse]
	adminLogin *connect.Client[AdminLoginRequest, AdminLoginResponse]

	token string
}

func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSON()}, opts...)

	return &Client{
		placeBid:   connect.NewClient[PlaceBidRequest, PlaceBidResponse](httpClient, baseURL+PlaceBidProcedure, opts...),
		listItems:  connect.NewClient[ListItemsRequest, ListItemsResponse](httpClient, baseURL+ListItemsProcedure, opts...),
		getItem:    connect.NewClient[GetItemRequest, GetItemResponse](httpClient, baseURL+GetItemProcedure, opts...),
		resetAll:   connect.NewClient[ResetAllRequest, ResetAllResponse](httpClient, baseURL+ResetAllProcedure, opts...),
		adminLogin: connect.NewClient[AdminLoginRequest, AdminLoginResponse](httpClient, baseURL+AdminLoginProcedure, opts...),
	}
}

// WithToken returns a copy of the client that sends token as a bearer credential
func (c *Client) WithToken(token string) *Client {
	out := *c
	out.token = token
	return &out
}

func (c *Client) PlaceBid(ctx context.Context, msg *PlaceBidRequest) (*PlaceBidResponse, error) {
	res, err := c.placeBid.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c *Client) ListItems(ctx context.Context) (*ListItemsResponse, error) {
	res, err := c.listItems.CallUnary(ctx, connect.NewRequest(&ListItemsRequest{}))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c *Client) GetItem(ctx context.Context, id string) (*GetItemResponse, error) {
	res, err := c.getItem.CallUnary(ctx, connect.NewRequest(&GetItemRequest{ID: id}))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c *Client) ResetAll(ctx context.Context) (*ResetAllResponse, error) {
	req := connect.NewRequest(&ResetAllRequest{})
	if c.token != "" {
		req.Header().Set("Authorization", "Bearer "+c.token)
	}
	res, err := c.resetAll.CallUnary(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c *Client) AdminLogin(ctx context.Context, username, password string) (*AdminLoginResponse, error) {
	res, err := c.adminLogin.CallUnary(ctx, connect.NewRequest(&AdminLoginRequest{
		Username: username,
		Password: password,
	}))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}
