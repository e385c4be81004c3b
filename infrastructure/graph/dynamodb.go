package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Single-table layout:
//
//	node item:  PK=NODE#<id>   SK=#META             GSI1PK=LABEL#<label> GSI1SK=<id>
//	edge item:  PK=NODE#<from> SK=EDGE#<label>#<to> GSI2PK=NODE#<to>     GSI2SK=EDGE#<label>#<from>
//
// Writes are staged as TransactWriteItems and applied atomically at
// Commit; the latest-pointer CAS rides on a condition expression.
const (
	nodeSortKey    = "#META"
	edgeSortPrefix = "EDGE#"
	labelIndexName = "GSI1"
	toIndexName    = "GSI2"

	// TransactWriteItems accepts at most 100 items per call.
	maxTransactItems = 100
)

// DynamoDB is the production substrate. All client calls run through
// a circuit breaker so a struggling table degrades fast instead of
// piling up timeouts; individual transactional operations are never
// retried here.
type DynamoDB struct {
	client    *dynamodb.Client
	tableName string
	breaker   *gobreaker.CircuitBreaker
	logger    *zap.Logger
}

// NewDynamoDB creates a DynamoDB-backed substrate.
func NewDynamoDB(client *dynamodb.Client, tableName string, logger *zap.Logger) *DynamoDB {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "dynamodb-substrate",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &DynamoDB{
		client:    client,
		tableName: tableName,
		breaker:   breaker,
		logger:    logger,
	}
}

// Begin opens a transaction bound to the caller identity.
func (d *DynamoDB) Begin(_ context.Context, userID string) (Tx, error) {
	return &ddbTx{d: d, userID: userID}, nil
}

type ddbTx struct {
	d      *DynamoDB
	userID string
	staged []types.TransactWriteItem
	done   bool
}

func (t *ddbTx) UserID() string { return t.userID }

func nodePK(id string) string { return "NODE#" + id }

func edgeSK(label, to string) string { return edgeSortPrefix + label + "#" + to }

func (t *ddbTx) stage(item types.TransactWriteItem) error {
	if t.done {
		return fmt.Errorf("graph: transaction already finished")
	}
	t.staged = append(t.staged, item)
	return nil
}

func (t *ddbTx) PutNode(_ context.Context, n Node, cond *Cond) error {
	props, err := attributevalue.MarshalMap(n.Props)
	if err != nil {
		return fmt.Errorf("graph: marshal node props: %w", err)
	}

	item := map[string]types.AttributeValue{
		"PK":     &types.AttributeValueMemberS{Value: nodePK(n.ID)},
		"SK":     &types.AttributeValueMemberS{Value: nodeSortKey},
		"NodeID": &types.AttributeValueMemberS{Value: n.ID},
		"Label":  &types.AttributeValueMemberS{Value: n.Label},
		"Props":  &types.AttributeValueMemberM{Value: props},
		"GSI1PK": &types.AttributeValueMemberS{Value: "LABEL#" + n.Label},
		"GSI1SK": &types.AttributeValueMemberS{Value: n.ID},
	}

	put := &types.Put{
		TableName: aws.String(t.d.tableName),
		Item:      item,
	}

	if cond != nil {
		expr, err := buildCondExpr(*cond)
		if err != nil {
			return err
		}
		put.ConditionExpression = expr.Condition()
		put.ExpressionAttributeNames = expr.Names()
		put.ExpressionAttributeValues = expr.Values()
	}

	return t.stage(types.TransactWriteItem{Put: put})
}

// buildCondExpr translates a Cond into a DynamoDB condition expression.
func buildCondExpr(cond Cond) (expression.Expression, error) {
	var builder expression.ConditionBuilder
	if cond.MustNotExist {
		builder = expression.Name("PK").AttributeNotExists()
	} else {
		builder = expression.Name("Props." + cond.Prop).Equal(expression.Value(cond.Equals))
	}
	expr, err := expression.NewBuilder().WithCondition(builder).Build()
	if err != nil {
		return expression.Expression{}, fmt.Errorf("graph: build condition: %w", err)
	}
	return expr, nil
}

// DeleteNode stages the node delete together with every incident
// edge, matching the detach-delete behavior of the in-memory
// substrate. Incident edges are enumerated at staging time. An
// optional cond guards the node delete itself, since DynamoDB
// rejects a separate condition check on an item the same
// transaction also deletes.
func (t *ddbTx) DeleteNode(ctx context.Context, id string, cond *Cond) error {
	outgoing, err := t.EdgesFrom(ctx, id, "")
	if err != nil {
		return err
	}
	incoming, err := t.EdgesTo(ctx, id, "")
	if err != nil {
		return err
	}

	for _, e := range outgoing {
		if err := t.DeleteEdge(ctx, e.From, e.Label, e.To); err != nil {
			return err
		}
	}
	for _, e := range incoming {
		if err := t.DeleteEdge(ctx, e.From, e.Label, e.To); err != nil {
			return err
		}
	}

	del := &types.Delete{
		TableName: aws.String(t.d.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: nodePK(id)},
			"SK": &types.AttributeValueMemberS{Value: nodeSortKey},
		},
	}
	if cond != nil {
		expr, err := buildCondExpr(*cond)
		if err != nil {
			return err
		}
		del.ConditionExpression = expr.Condition()
		del.ExpressionAttributeNames = expr.Names()
		del.ExpressionAttributeValues = expr.Values()
	}

	return t.stage(types.TransactWriteItem{Delete: del})
}

// CheckNode stages a pure condition check: no write, but the whole
// transaction fails unless the condition holds at commit time.
func (t *ddbTx) CheckNode(_ context.Context, id string, cond Cond) error {
	expr, err := buildCondExpr(cond)
	if err != nil {
		return err
	}
	return t.stage(types.TransactWriteItem{
		ConditionCheck: &types.ConditionCheck{
			TableName: aws.String(t.d.tableName),
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: nodePK(id)},
				"SK": &types.AttributeValueMemberS{Value: nodeSortKey},
			},
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		},
	})
}

func (t *ddbTx) PutEdge(_ context.Context, e Edge) error {
	props, err := attributevalue.MarshalMap(e.Props)
	if err != nil {
		return fmt.Errorf("graph: marshal edge props: %w", err)
	}

	item := map[string]types.AttributeValue{
		"PK":     &types.AttributeValueMemberS{Value: nodePK(e.From)},
		"SK":     &types.AttributeValueMemberS{Value: edgeSK(e.Label, e.To)},
		"From":   &types.AttributeValueMemberS{Value: e.From},
		"Label":  &types.AttributeValueMemberS{Value: e.Label},
		"To":     &types.AttributeValueMemberS{Value: e.To},
		"Props":  &types.AttributeValueMemberM{Value: props},
		"GSI2PK": &types.AttributeValueMemberS{Value: nodePK(e.To)},
		"GSI2SK": &types.AttributeValueMemberS{Value: edgeSK(e.Label, e.From)},
	}

	return t.stage(types.TransactWriteItem{
		Put: &types.Put{
			TableName: aws.String(t.d.tableName),
			Item:      item,
		},
	})
}

func (t *ddbTx) DeleteEdge(_ context.Context, from, label, to string) error {
	return t.stage(types.TransactWriteItem{
		Delete: &types.Delete{
			TableName: aws.String(t.d.tableName),
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: nodePK(from)},
				"SK": &types.AttributeValueMemberS{Value: edgeSK(label, to)},
			},
		},
	})
}

func (t *ddbTx) GetNode(ctx context.Context, id string) (Node, bool, error) {
	out, err := t.execute(ctx, "GetItem", func() (any, error) {
		return t.d.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName:      aws.String(t.d.tableName),
			ConsistentRead: aws.Bool(true),
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: nodePK(id)},
				"SK": &types.AttributeValueMemberS{Value: nodeSortKey},
			},
		})
	})
	if err != nil {
		return Node{}, false, err
	}

	result := out.(*dynamodb.GetItemOutput)
	if result.Item == nil {
		return Node{}, false, nil
	}

	node, err := parseNodeItem(result.Item)
	if err != nil {
		return Node{}, false, err
	}
	return node, true, nil
}

func (t *ddbTx) NodesByLabel(ctx context.Context, label string) ([]Node, error) {
	keyExpr := expression.Key("GSI1PK").Equal(expression.Value("LABEL#" + label))
	expr, err := expression.NewBuilder().WithKeyCondition(keyExpr).Build()
	if err != nil {
		return nil, fmt.Errorf("graph: build expression: %w", err)
	}

	var nodes []Node
	var startKey map[string]types.AttributeValue
	for {
		out, err := t.execute(ctx, "Query", func() (any, error) {
			return t.d.client.Query(ctx, &dynamodb.QueryInput{
				TableName:                 aws.String(t.d.tableName),
				IndexName:                 aws.String(labelIndexName),
				KeyConditionExpression:    expr.KeyCondition(),
				ExpressionAttributeNames:  expr.Names(),
				ExpressionAttributeValues: expr.Values(),
				ExclusiveStartKey:         startKey,
			})
		})
		if err != nil {
			return nil, err
		}

		result := out.(*dynamodb.QueryOutput)
		for _, item := range result.Items {
			node, err := parseNodeItem(item)
			if err != nil {
				t.d.logger.Warn("Failed to parse node item", zap.Error(err))
				continue
			}
			nodes = append(nodes, node)
		}

		if result.LastEvaluatedKey == nil {
			return nodes, nil
		}
		startKey = result.LastEvaluatedKey
	}
}

func (t *ddbTx) EdgesFrom(ctx context.Context, from, label string) ([]Edge, error) {
	keyExpr := expression.Key("PK").Equal(expression.Value(nodePK(from))).
		And(expression.Key("SK").BeginsWith(edgeSortPrefix + labelPrefix(label)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyExpr).Build()
	if err != nil {
		return nil, fmt.Errorf("graph: build expression: %w", err)
	}

	out, err := t.execute(ctx, "Query", func() (any, error) {
		return t.d.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(t.d.tableName),
			ConsistentRead:            aws.Bool(true),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		})
	})
	if err != nil {
		return nil, err
	}

	return parseEdgeItems(out.(*dynamodb.QueryOutput).Items, t.d.logger)
}

func (t *ddbTx) EdgesTo(ctx context.Context, to, label string) ([]Edge, error) {
	keyExpr := expression.Key("GSI2PK").Equal(expression.Value(nodePK(to))).
		And(expression.Key("GSI2SK").BeginsWith(edgeSortPrefix + labelPrefix(label)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyExpr).Build()
	if err != nil {
		return nil, fmt.Errorf("graph: build expression: %w", err)
	}

	out, err := t.execute(ctx, "Query", func() (any, error) {
		return t.d.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(t.d.tableName),
			IndexName:                 aws.String(toIndexName),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		})
	})
	if err != nil {
		return nil, err
	}

	return parseEdgeItems(out.(*dynamodb.QueryOutput).Items, t.d.logger)
}

// labelPrefix narrows a begins_with key condition to one edge label.
// An empty label matches every edge of the node.
func labelPrefix(label string) string {
	if label == "" {
		return ""
	}
	return label + "#"
}

func (t *ddbTx) Commit(ctx context.Context) error {
	if t.done {
		return fmt.Errorf("graph: transaction already finished")
	}
	t.done = true

	if len(t.staged) == 0 {
		return nil
	}
	if len(t.staged) > maxTransactItems {
		return fmt.Errorf("graph: transaction exceeds %d items: %d", maxTransactItems, len(t.staged))
	}

	_, err := t.execute(ctx, "TransactWriteItems", func() (any, error) {
		return t.d.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: t.staged,
		})
	})
	t.staged = nil
	if err != nil {
		if isConditionFailure(err) {
			return ErrConditionFailed
		}
		return err
	}
	return nil
}

func (t *ddbTx) Rollback() error {
	t.done = true
	t.staged = nil
	return nil
}

// execute routes a client call through the circuit breaker.
func (t *ddbTx) execute(_ context.Context, operation string, call func() (any, error)) (any, error) {
	out, err := t.d.breaker.Execute(call)
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			t.d.logger.Debug("DynamoDB call failed",
				zap.String("operation", operation),
				zap.String("code", apiErr.ErrorCode()),
			)
		}
		return nil, err
	}
	return out, nil
}

// isConditionFailure reports whether a transaction was canceled
// because a condition expression did not hold.
func isConditionFailure(err error) bool {
	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		for _, reason := range canceled.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				return true
			}
		}
	}
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func parseNodeItem(item map[string]types.AttributeValue) (Node, error) {
	var raw struct {
		NodeID string
		Label  string
		Props  map[string]any
	}
	if err := attributevalue.UnmarshalMap(item, &raw); err != nil {
		return Node{}, fmt.Errorf("graph: parse node item: %w", err)
	}
	if raw.NodeID == "" {
		return Node{}, fmt.Errorf("graph: node item missing NodeID")
	}
	return Node{ID: raw.NodeID, Label: raw.Label, Props: raw.Props}, nil
}

func parseEdgeItems(items []map[string]types.AttributeValue, logger *zap.Logger) ([]Edge, error) {
	edges := make([]Edge, 0, len(items))
	for _, item := range items {
		var raw struct {
			From  string
			Label string
			To    string
			Props map[string]any
			SK    string
		}
		if err := attributevalue.UnmarshalMap(item, &raw); err != nil {
			logger.Warn("Failed to parse edge item", zap.Error(err))
			continue
		}
		// Node meta items share the partition; only edge sort keys count.
		if !strings.HasPrefix(raw.SK, edgeSortPrefix) && raw.SK != "" {
			continue
		}
		edges = append(edges, Edge{From: raw.From, Label: raw.Label, To: raw.To, Props: raw.Props})
	}
	return edges, nil
}
