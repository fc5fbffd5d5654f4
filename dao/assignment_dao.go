// api/dao/assignment_dao.go
package dao

import (
	"context"
	"encoding/json"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/permsync/permsync/api/audit"
	permsync_errors "github.com/permsync/permsync/api/errors"
	logger "github.com/permsync/permsync/api/logging"
	"github.com/permsync/permsync/api/model"
	permsync_graph "github.com/permsync/permsync/api/model/graph"
)

// GraphSession is the subset of the driver session API the DAO uses.
type GraphSession interface {
	ReadTransaction(work neo4j.TransactionWork, configurers ...func(*neo4j.TransactionConfig)) (interface{}, error)
	WriteTransaction(work neo4j.TransactionWork, configurers ...func(*neo4j.TransactionConfig)) (interface{}, error)
	Close() error
}

// GraphDriver opens sessions against the access graph.
type GraphDriver interface {
	NewSession(config neo4j.SessionConfig) GraphSession
}

type neo4jDriver struct {
	driver neo4j.Driver
}

func (d neo4jDriver) NewSession(config neo4j.SessionConfig) GraphSession {
	return d.driver.NewSession(config)
}

// AssignmentDAO projects resolved assignments into the access graph so
// "who can reach what" questions are answered from Neo4j instead of
// re-deriving them from templates on every request.
type AssignmentDAO struct {
	Driver       GraphDriver
	AuditService audit.Service
}

func NewAssignmentDAO(driver neo4j.Driver, auditService audit.Service) *AssignmentDAO {
	dao := &AssignmentDAO{Driver: neo4jDriver{driver: driver}, AuditService: auditService}
	ctx := context.Background()
	if err := dao.EnsureUniqueConstraint(ctx); err != nil {
		logger.Fatal("Failed to ensure unique constraint for PermissionSet", zap.Error(err))
	}
	return dao
}

func (dao *AssignmentDAO) EnsureUniqueConstraint(ctx context.Context) error {
	logger.Info("Ensuring unique constraint on PermissionSet name")
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        CREATE CONSTRAINT unique_permission_set_name IF NOT EXISTS
        FOR (ps:` + permsync_graph.LabelPermissionSet + `) REQUIRE ps.name IS UNIQUE
        `
		_, err := transaction.Run(query, nil)
		return nil, err
	})

	if err != nil {
		logger.Error("Failed to ensure unique constraint on PermissionSet name", zap.Error(err))
		return err
	}

	logger.Info("Successfully ensured unique constraint on PermissionSet name")
	return nil
}

// ProjectAssignments replaces the stored projection for one permission set
// with the assignments resolved by the latest pass.
func (dao *AssignmentDAO) ProjectAssignments(ctx context.Context, runID, permissionSet string, assignments []model.ResolvedAssignment) error {
	start := time.Now()
	logger.Info("Projecting resolved assignments",
		zap.String("permissionSet", permissionSet),
		zap.Int("assignments", len(assignments)))

	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		clearQuery := `
        MERGE (ps:` + permsync_graph.LabelPermissionSet + ` {name: $name})
        ON CREATE SET ps.createdAt = $now
        SET ps.updatedAt = $now, ps.lastRunId = $runId
        WITH ps
        OPTIONAL MATCH (ps)-[r:` + permsync_graph.RelAssignedOn + `|` + permsync_graph.RelGrantedTo + `]->()
        DELETE r
        `
		if _, err := transaction.Run(clearQuery, map[string]interface{}{
			"name":  permissionSet,
			"now":   time.Now().Format(time.RFC3339),
			"runId": runID,
		}); err != nil {
			return nil, permsync_errors.ErrGraphUnavailable
		}

		assignQuery := `
        MATCH (ps:` + permsync_graph.LabelPermissionSet + ` {name: $name})
        MERGE (a:` + permsync_graph.LabelAccount + ` {id: $accountId})
        SET a.label = $accountLabel
        MERGE (p:` + permsync_graph.LabelPrincipal + ` {id: $principalId, type: $principalType})
        SET p.name = $principalName
        MERGE (ps)-[:` + permsync_graph.RelAssignedOn + `]->(a)
        MERGE (ps)-[:` + permsync_graph.RelGrantedTo + ` {accountId: $accountId}]->(p)
        `
		for _, a := range assignments {
			params := map[string]interface{}{
				"name":          permissionSet,
				"accountId":     a.AccountID,
				"accountLabel":  a.AccountLabel,
				"principalId":   a.PrincipalID,
				"principalType": string(a.PrincipalType),
				"principalName": a.PrincipalName,
			}
			if _, err := transaction.Run(assignQuery, params); err != nil {
				return nil, permsync_errors.ErrGraphUnavailable
			}
		}
		return nil, nil
	})

	duration := time.Since(start)
	if err != nil {
		logger.Error("Failed to project assignments",
			zap.Error(err),
			zap.String("permissionSet", permissionSet),
			zap.Duration("duration", duration))
		return err
	}

	logger.Info("Assignments projected successfully",
		zap.String("permissionSet", permissionSet),
		zap.Duration("duration", duration))

	// Audit trail
	auditLog := audit.ReconcileLog{
		Timestamp:     time.Now(),
		RunID:         runID,
		Action:        "PROJECT_ASSIGNMENTS",
		ResourceID:    permissionSet,
		Success:       true,
		ChangeDetails: assignmentChangeDetails(assignments),
	}
	if err := dao.AuditService.LogEvent(ctx, auditLog); err != nil {
		logger.Error("Failed to create audit log", zap.Error(err))
	}

	return nil
}

// GetAccountAccess lists every (permission set, principal) grant projected
// for one account.
func (dao *AssignmentDAO) GetAccountAccess(ctx context.Context, accountID string) ([]model.AccessEntry, error) {
	start := time.Now()
	logger.Info("Fetching account access from graph", zap.String("accountId", accountID))

	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (ps:` + permsync_graph.LabelPermissionSet + `)-[:` + permsync_graph.RelAssignedOn + `]->(a:` + permsync_graph.LabelAccount + ` {id: $accountId})
        MATCH (ps)-[:` + permsync_graph.RelGrantedTo + ` {accountId: $accountId}]->(p:` + permsync_graph.LabelPrincipal + `)
        RETURN ps.name AS permissionSet, p.id AS principalId, p.type AS principalType, p.name AS principalName
        ORDER BY permissionSet, principalType, principalId
        `
		records, err := transaction.Run(query, map[string]interface{}{"accountId": accountID})
		if err != nil {
			return nil, permsync_errors.ErrGraphUnavailable
		}

		var entries []model.AccessEntry
		for records.Next() {
			record := records.Record()
			entry := model.AccessEntry{AccountID: accountID}
			if v, ok := record.Get("permissionSet"); ok && v != nil {
				entry.PermissionSet = v.(string)
			}
			if v, ok := record.Get("principalId"); ok && v != nil {
				entry.PrincipalID = v.(string)
			}
			if v, ok := record.Get("principalType"); ok && v != nil {
				entry.PrincipalType = model.PrincipalType(v.(string))
			}
			if v, ok := record.Get("principalName"); ok && v != nil {
				entry.PrincipalName = v.(string)
			}
			entries = append(entries, entry)
		}
		return entries, nil
	})

	duration := time.Since(start)
	if err != nil {
		logger.Error("Failed to fetch account access",
			zap.Error(err),
			zap.String("accountId", accountID),
			zap.Duration("duration", duration))
		return nil, err
	}

	entries := result.([]model.AccessEntry)
	logger.Info("Account access fetched successfully",
		zap.String("accountId", accountID),
		zap.Int("entries", len(entries)),
		zap.Duration("duration", duration))
	return entries, nil
}

// DeleteProjection removes a permission set and its relationships from the
// graph after the template is deleted.
func (dao *AssignmentDAO) DeleteProjection(ctx context.Context, permissionSet string) error {
	logger.Info("Deleting permission set projection", zap.String("permissionSet", permissionSet))

	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (ps:` + permsync_graph.LabelPermissionSet + ` {name: $name})
        DETACH DELETE ps
        `
		if _, err := transaction.Run(query, map[string]interface{}{"name": permissionSet}); err != nil {
			return nil, permsync_errors.ErrGraphUnavailable
		}
		return nil, nil
	})

	if err != nil {
		logger.Error("Failed to delete permission set projection",
			zap.Error(err),
			zap.String("permissionSet", permissionSet))
		return err
	}

	logger.Info("Permission set projection deleted", zap.String("permissionSet", permissionSet))
	return nil
}

func assignmentChangeDetails(assignments []model.ResolvedAssignment) json.RawMessage {
	data, err := json.Marshal(assignments)
	if err != nil {
		return nil
	}
	return data
}
