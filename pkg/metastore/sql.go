/*
 Copyright 2023 NanaFS Authors.

 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package metastore

import (
	"context"
	"errors"
	"runtime/trace"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/basenana/vfsrepo/config"
	"github.com/basenana/vfsrepo/pkg/metastore/db"
	"github.com/basenana/vfsrepo/pkg/types"
	"github.com/basenana/vfsrepo/utils"
	"github.com/basenana/vfsrepo/utils/logger"
)

const (
	MemoryMeta   = config.MemoryMeta
	SqliteMeta   = config.SqliteMeta
	PostgresMeta = config.PostgresMeta
)

type sqliteMetaStore struct {
	dbStore *sqlMetaStore
	mux     sync.RWMutex
}

var _ Meta = &sqliteMetaStore{}

func (s *sqliteMetaStore) SystemInfo(ctx context.Context) (*types.SystemInfo, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.dbStore.SystemInfo(ctx)
}

func (s *sqliteMetaStore) GetResource(ctx context.Context, rootPath string) (*types.Resource, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.dbStore.GetResource(ctx, rootPath)
}

func (s *sqliteMetaStore) GetResourceByID(ctx context.Context, structureID int64) (*types.Resource, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.dbStore.GetResourceByID(ctx, structureID)
}

func (s *sqliteMetaStore) ListChildren(ctx context.Context, parentPath string) ([]*types.Resource, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.dbStore.ListChildren(ctx, parentPath)
}

func (s *sqliteMetaStore) ListSiblings(ctx context.Context, resourceID int64) ([]*types.Resource, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.dbStore.ListSiblings(ctx, resourceID)
}

func (s *sqliteMetaStore) CreateResource(ctx context.Context, res *types.Resource) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.CreateResource(ctx, res)
}

func (s *sqliteMetaStore) UpdateResource(ctx context.Context, res *types.Resource) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.UpdateResource(ctx, res)
}

func (s *sqliteMetaStore) UpdateContent(ctx context.Context, resourceID, length int64, modifiedBy string, modifiedAt time.Time) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.UpdateContent(ctx, resourceID, length, modifiedBy, modifiedAt)
}

func (s *sqliteMetaStore) MoveTree(ctx context.Context, srcPath, dstPath string) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.MoveTree(ctx, srcPath, dstPath)
}

func (s *sqliteMetaStore) DeleteTree(ctx context.Context, rootPath string) ([]*types.Resource, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.DeleteTree(ctx, rootPath)
}

func (s *sqliteMetaStore) GetProperties(ctx context.Context, structureID int64) (map[string]string, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.dbStore.GetProperties(ctx, structureID)
}

func (s *sqliteMetaStore) SetProperty(ctx context.Context, structureID int64, name, value string) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.SetProperty(ctx, structureID, name, value)
}

func (s *sqliteMetaStore) FindLocks(ctx context.Context, rootPaths []string) ([]*types.Lock, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.dbStore.FindLocks(ctx, rootPaths)
}

func (s *sqliteMetaStore) SaveLock(ctx context.Context, lock *types.Lock) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.SaveLock(ctx, lock)
}

func (s *sqliteMetaStore) ListLocksUnder(ctx context.Context, folderPath string) ([]*types.Lock, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.dbStore.ListLocksUnder(ctx, folderPath)
}

func (s *sqliteMetaStore) DeleteLock(ctx context.Context, rootPath string) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.DeleteLock(ctx, rootPath)
}

func (s *sqliteMetaStore) DeleteLocksUnder(ctx context.Context, folderPath string) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.DeleteLocksUnder(ctx, folderPath)
}

func (s *sqliteMetaStore) GetUser(ctx context.Context, name string) (*types.User, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.dbStore.GetUser(ctx, name)
}

func (s *sqliteMetaStore) ListUsers(ctx context.Context) ([]*types.User, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.dbStore.ListUsers(ctx)
}

func (s *sqliteMetaStore) SaveUser(ctx context.Context, user *types.User) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.SaveUser(ctx, user)
}

func (s *sqliteMetaStore) GetProject(ctx context.Context, name string) (*types.Project, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.dbStore.GetProject(ctx, name)
}

func (s *sqliteMetaStore) ListProjects(ctx context.Context) ([]*types.Project, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.dbStore.ListProjects(ctx)
}

func (s *sqliteMetaStore) SaveProject(ctx context.Context, project *types.Project) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.dbStore.SaveProject(ctx, project)
}

func newSqliteMetaStore(meta config.Meta) (*sqliteMetaStore, error) {
	dbEntity, err := gorm.Open(sqlite.Open(meta.Path), &gorm.Config{Logger: db.NewDbLogger()})
	if err != nil {
		return nil, err
	}

	dbConn, err := dbEntity.DB()
	if err != nil {
		return nil, err
	}

	// every connection of an in-memory database sees its own empty db
	if meta.Path == ":memory:" {
		dbConn.SetMaxOpenConns(1)
	}

	if err = dbConn.Ping(); err != nil {
		return nil, err
	}

	dbStore, err := buildSqlMetaStore(dbEntity)
	if err != nil {
		return nil, err
	}

	return &sqliteMetaStore{dbStore: dbStore}, nil
}

func newPostgresMetaStore(meta config.Meta) (*sqlMetaStore, error) {
	dbEntity, err := gorm.Open(postgres.Open(meta.DSN), &gorm.Config{Logger: db.NewDbLogger()})
	if err != nil {
		return nil, err
	}

	dbConn, err := dbEntity.DB()
	if err != nil {
		return nil, err
	}

	dbConn.SetMaxIdleConns(5)
	dbConn.SetMaxOpenConns(50)
	dbConn.SetConnMaxLifetime(time.Hour)

	if err = dbConn.Ping(); err != nil {
		return nil, err
	}

	return buildSqlMetaStore(dbEntity)
}

type sqlMetaStore struct {
	*gorm.DB
	logger *zap.SugaredLogger
}

var _ Meta = &sqlMetaStore{}

func buildSqlMetaStore(dbEntity *gorm.DB) (*sqlMetaStore, error) {
	s := &sqlMetaStore{DB: dbEntity, logger: logger.NewLogger("metastore")}

	if err := db.Migrate(s.DB); err != nil {
		return nil, db.SqlError2Error(err)
	}

	info := &db.SystemInfo{}
	res := s.First(info)
	if res.Error != nil {
		if !errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, res.Error
		}
		info = &db.SystemInfo{SystemID: uuid.New().String(), CreatedAt: time.Now().UnixNano()}
		if res = s.Create(info); res.Error != nil {
			return nil, db.SqlError2Error(res.Error)
		}
		s.logger.Infow("init system info", "system", info.SystemID)
	}
	return s, nil
}

func (s *sqlMetaStore) SystemInfo(ctx context.Context) (*types.SystemInfo, error) {
	defer trace.StartRegion(ctx, "metastore.sql.SystemInfo").End()
	defer logOperationLatency("system_info", time.Now())
	info := &db.SystemInfo{}
	res := s.WithContext(ctx).First(info)
	if res.Error != nil {
		return nil, logOperationError("system_info", db.SqlError2Error(res.Error))
	}
	result := &types.SystemInfo{SystemID: info.SystemID}

	res = s.WithContext(ctx).Model(&db.Resource{}).Count(&result.ResourceCount)
	if res.Error != nil {
		return nil, logOperationError("system_info", db.SqlError2Error(res.Error))
	}
	if result.ResourceCount == 0 {
		return result, nil
	}

	res = s.WithContext(ctx).Model(&db.Resource{}).Select("COALESCE(SUM(length), 0)").Scan(&result.ContentTotal)
	if res.Error != nil {
		return nil, logOperationError("system_info", db.SqlError2Error(res.Error))
	}
	return result, nil
}

func (s *sqlMetaStore) GetResource(ctx context.Context, rootPath string) (*types.Resource, error) {
	defer trace.StartRegion(ctx, "metastore.sql.GetResource").End()
	defer logOperationLatency("get_resource", time.Now())
	mod := &db.Resource{}
	res := s.WithContext(ctx).Where("root_path = ?", rootPath).First(mod)
	if res.Error != nil {
		return nil, logOperationError("get_resource", db.SqlError2Error(res.Error))
	}
	return mod.Resource(), nil
}

func (s *sqlMetaStore) GetResourceByID(ctx context.Context, structureID int64) (*types.Resource, error) {
	defer trace.StartRegion(ctx, "metastore.sql.GetResourceByID").End()
	defer logOperationLatency("get_resource_by_id", time.Now())
	mod := &db.Resource{}
	res := s.WithContext(ctx).Where("structure_id = ?", structureID).First(mod)
	if res.Error != nil {
		return nil, logOperationError("get_resource_by_id", db.SqlError2Error(res.Error))
	}
	return mod.Resource(), nil
}

func (s *sqlMetaStore) ListChildren(ctx context.Context, parentPath string) ([]*types.Resource, error) {
	defer trace.StartRegion(ctx, "metastore.sql.ListChildren").End()
	defer logOperationLatency("list_children", time.Now())
	var mods []db.Resource
	res := s.WithContext(ctx).Where("parent_path = ?", parentPath).Order("name").Find(&mods)
	if res.Error != nil {
		return nil, logOperationError("list_children", db.SqlError2Error(res.Error))
	}
	return toResources(mods), nil
}

func (s *sqlMetaStore) ListSiblings(ctx context.Context, resourceID int64) ([]*types.Resource, error) {
	defer trace.StartRegion(ctx, "metastore.sql.ListSiblings").End()
	defer logOperationLatency("list_siblings", time.Now())
	var mods []db.Resource
	res := s.WithContext(ctx).Where("resource_id = ?", resourceID).Order("root_path").Find(&mods)
	if res.Error != nil {
		return nil, logOperationError("list_siblings", db.SqlError2Error(res.Error))
	}
	return toResources(mods), nil
}

func (s *sqlMetaStore) CreateResource(ctx context.Context, newRes *types.Resource) error {
	defer trace.StartRegion(ctx, "metastore.sql.CreateResource").End()
	defer logOperationLatency("create_resource", time.Now())
	mod := &db.Resource{}
	mod.Update(newRes)
	res := s.WithContext(ctx).Create(mod)
	return logOperationError("create_resource", db.SqlError2Error(res.Error))
}

func (s *sqlMetaStore) UpdateResource(ctx context.Context, updated *types.Resource) error {
	defer trace.StartRegion(ctx, "metastore.sql.UpdateResource").End()
	defer logOperationLatency("update_resource", time.Now())
	mod := &db.Resource{}
	mod.Update(updated)
	res := s.WithContext(ctx).Save(mod)
	return logOperationError("update_resource", db.SqlError2Error(res.Error))
}

func (s *sqlMetaStore) UpdateContent(ctx context.Context, resourceID, length int64, modifiedBy string, modifiedAt time.Time) error {
	defer trace.StartRegion(ctx, "metastore.sql.UpdateContent").End()
	defer logOperationLatency("update_content", time.Now())
	res := s.WithContext(ctx).Model(&db.Resource{}).Where("resource_id = ?", resourceID).Updates(map[string]interface{}{
		"length":      length,
		"modified_by": modifiedBy,
		"modified_at": modifiedAt.UnixNano(),
	})
	return logOperationError("update_content", db.SqlError2Error(res.Error))
}

func (s *sqlMetaStore) MoveTree(ctx context.Context, srcPath, dstPath string) error {
	defer trace.StartRegion(ctx, "metastore.sql.MoveTree").End()
	defer logOperationLatency("move_tree", time.Now())
	err := s.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var mods []db.Resource
		if res := treeQuery(tx, srcPath).Find(&mods); res.Error != nil {
			return res.Error
		}
		if len(mods) == 0 {
			return types.ErrNotFound
		}
		for i := range mods {
			mod := mods[i]
			mod.RootPath = dstPath + strings.TrimPrefix(mod.RootPath, srcPath)
			mod.ParentPath = utils.ParentPath(mod.RootPath)
			if mod.RootPath == dstPath {
				mod.Name = utils.BaseName(dstPath)
			}
			if res := tx.Save(&mod); res.Error != nil {
				return res.Error
			}
		}

		var locks []db.ResourceLock
		if res := treeQuery(tx, srcPath).Find(&locks); res.Error != nil {
			return res.Error
		}
		for _, l := range locks {
			newPath := dstPath + strings.TrimPrefix(l.RootPath, srcPath)
			if res := tx.Where("root_path = ?", newPath).Delete(&db.ResourceLock{}); res.Error != nil {
				return res.Error
			}
			if res := tx.Model(&db.ResourceLock{}).Where("root_path = ?", l.RootPath).Update("root_path", newPath); res.Error != nil {
				return res.Error
			}
		}
		return nil
	})
	return logOperationError("move_tree", db.SqlError2Error(err))
}

func (s *sqlMetaStore) DeleteTree(ctx context.Context, rootPath string) ([]*types.Resource, error) {
	defer trace.StartRegion(ctx, "metastore.sql.DeleteTree").End()
	defer logOperationLatency("delete_tree", time.Now())
	var mods []db.Resource
	err := s.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if res := treeQuery(tx, rootPath).Find(&mods); res.Error != nil {
			return res.Error
		}
		if len(mods) == 0 {
			return types.ErrNotFound
		}
		ids := make([]int64, 0, len(mods))
		for _, m := range mods {
			ids = append(ids, m.StructureID)
		}
		if res := tx.Where("structure_id IN ?", ids).Delete(&db.ResourceProperty{}); res.Error != nil {
			return res.Error
		}
		if res := tx.Where("structure_id IN ?", ids).Delete(&db.Resource{}); res.Error != nil {
			return res.Error
		}
		return nil
	})
	if err != nil {
		return nil, logOperationError("delete_tree", db.SqlError2Error(err))
	}
	return toResources(mods), nil
}

func (s *sqlMetaStore) GetProperties(ctx context.Context, structureID int64) (map[string]string, error) {
	defer trace.StartRegion(ctx, "metastore.sql.GetProperties").End()
	defer logOperationLatency("get_properties", time.Now())
	var mods []db.ResourceProperty
	res := s.WithContext(ctx).Where("structure_id = ?", structureID).Find(&mods)
	if res.Error != nil {
		return nil, logOperationError("get_properties", db.SqlError2Error(res.Error))
	}
	result := make(map[string]string, len(mods))
	for _, m := range mods {
		result[m.Name] = m.Value
	}
	return result, nil
}

// SetProperty stores a property value, an empty value removes the property.
func (s *sqlMetaStore) SetProperty(ctx context.Context, structureID int64, name, value string) error {
	defer trace.StartRegion(ctx, "metastore.sql.SetProperty").End()
	defer logOperationLatency("set_property", time.Now())
	err := s.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if res := tx.Where("structure_id = ? AND key = ?", structureID, name).Delete(&db.ResourceProperty{}); res.Error != nil {
			return res.Error
		}
		if value == "" {
			return nil
		}
		res := tx.Create(&db.ResourceProperty{StructureID: structureID, Name: name, Value: value})
		return res.Error
	})
	return logOperationError("set_property", db.SqlError2Error(err))
}

func (s *sqlMetaStore) FindLocks(ctx context.Context, rootPaths []string) ([]*types.Lock, error) {
	defer trace.StartRegion(ctx, "metastore.sql.FindLocks").End()
	defer logOperationLatency("find_locks", time.Now())
	if len(rootPaths) == 0 {
		return nil, nil
	}
	var mods []db.ResourceLock
	res := s.WithContext(ctx).Where("root_path IN ?", rootPaths).Find(&mods)
	if res.Error != nil {
		return nil, logOperationError("find_locks", db.SqlError2Error(res.Error))
	}
	result := make([]*types.Lock, 0, len(mods))
	for i := range mods {
		result = append(result, mods[i].Lock())
	}
	return result, nil
}

func (s *sqlMetaStore) SaveLock(ctx context.Context, lock *types.Lock) error {
	defer trace.StartRegion(ctx, "metastore.sql.SaveLock").End()
	defer logOperationLatency("save_lock", time.Now())
	mod := &db.ResourceLock{}
	mod.Update(lock)
	res := s.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(mod)
	return logOperationError("save_lock", db.SqlError2Error(res.Error))
}

func (s *sqlMetaStore) ListLocksUnder(ctx context.Context, folderPath string) ([]*types.Lock, error) {
	defer trace.StartRegion(ctx, "metastore.sql.ListLocksUnder").End()
	defer logOperationLatency("list_locks_under", time.Now())
	folderPath = utils.FolderPath(folderPath)
	var mods []db.ResourceLock
	res := s.WithContext(ctx).
		Where("substr(root_path, 1, ?) = ? AND root_path <> ?", utf8.RuneCountInString(folderPath), folderPath, folderPath).
		Find(&mods)
	if res.Error != nil {
		return nil, logOperationError("list_locks_under", db.SqlError2Error(res.Error))
	}
	result := make([]*types.Lock, 0, len(mods))
	for i := range mods {
		result = append(result, mods[i].Lock())
	}
	return result, nil
}

func (s *sqlMetaStore) DeleteLock(ctx context.Context, rootPath string) error {
	defer trace.StartRegion(ctx, "metastore.sql.DeleteLock").End()
	defer logOperationLatency("delete_lock", time.Now())
	res := s.WithContext(ctx).Where("root_path = ?", rootPath).Delete(&db.ResourceLock{})
	return logOperationError("delete_lock", db.SqlError2Error(res.Error))
}

// DeleteLocksUnder removes the locks of every descendant of folderPath,
// the lock on the folder itself stays.
func (s *sqlMetaStore) DeleteLocksUnder(ctx context.Context, folderPath string) error {
	defer trace.StartRegion(ctx, "metastore.sql.DeleteLocksUnder").End()
	defer logOperationLatency("delete_locks_under", time.Now())
	folderPath = utils.FolderPath(folderPath)
	res := s.WithContext(ctx).
		Where("substr(root_path, 1, ?) = ? AND root_path <> ?", utf8.RuneCountInString(folderPath), folderPath, folderPath).
		Delete(&db.ResourceLock{})
	return logOperationError("delete_locks_under", db.SqlError2Error(res.Error))
}

func (s *sqlMetaStore) GetUser(ctx context.Context, name string) (*types.User, error) {
	defer trace.StartRegion(ctx, "metastore.sql.GetUser").End()
	defer logOperationLatency("get_user", time.Now())
	mod := &db.User{}
	res := s.WithContext(ctx).Where("name = ?", name).First(mod)
	if res.Error != nil {
		return nil, logOperationError("get_user", db.SqlError2Error(res.Error))
	}
	return mod.User(), nil
}

func (s *sqlMetaStore) ListUsers(ctx context.Context) ([]*types.User, error) {
	defer trace.StartRegion(ctx, "metastore.sql.ListUsers").End()
	defer logOperationLatency("list_users", time.Now())
	var mods []db.User
	res := s.WithContext(ctx).Order("name").Find(&mods)
	if res.Error != nil {
		return nil, logOperationError("list_users", db.SqlError2Error(res.Error))
	}
	result := make([]*types.User, 0, len(mods))
	for i := range mods {
		result = append(result, mods[i].User())
	}
	return result, nil
}

func (s *sqlMetaStore) SaveUser(ctx context.Context, user *types.User) error {
	defer trace.StartRegion(ctx, "metastore.sql.SaveUser").End()
	defer logOperationLatency("save_user", time.Now())
	if user.ID == 0 {
		user.ID = utils.GenerateNewID()
	}
	mod := &db.User{}
	mod.Update(user)
	res := s.WithContext(ctx).Save(mod)
	return logOperationError("save_user", db.SqlError2Error(res.Error))
}

func (s *sqlMetaStore) GetProject(ctx context.Context, name string) (*types.Project, error) {
	defer trace.StartRegion(ctx, "metastore.sql.GetProject").End()
	defer logOperationLatency("get_project", time.Now())
	mod := &db.Project{}
	res := s.WithContext(ctx).Where("name = ?", name).First(mod)
	if res.Error != nil {
		return nil, logOperationError("get_project", db.SqlError2Error(res.Error))
	}
	return mod.Project(), nil
}

func (s *sqlMetaStore) ListProjects(ctx context.Context) ([]*types.Project, error) {
	defer trace.StartRegion(ctx, "metastore.sql.ListProjects").End()
	defer logOperationLatency("list_projects", time.Now())
	var mods []db.Project
	res := s.WithContext(ctx).Order("name").Find(&mods)
	if res.Error != nil {
		return nil, logOperationError("list_projects", db.SqlError2Error(res.Error))
	}
	result := make([]*types.Project, 0, len(mods))
	for i := range mods {
		result = append(result, mods[i].Project())
	}
	return result, nil
}

func (s *sqlMetaStore) SaveProject(ctx context.Context, project *types.Project) error {
	defer trace.StartRegion(ctx, "metastore.sql.SaveProject").End()
	defer logOperationLatency("save_project", time.Now())
	if project.ID == 0 {
		project.ID = utils.GenerateNewID()
	}
	mod := &db.Project{ID: project.ID, Name: project.Name, Online: project.Online}
	res := s.WithContext(ctx).Save(mod)
	return logOperationError("save_project", db.SqlError2Error(res.Error))
}

// treeQuery selects the record at rootPath and, for folders, every record below it.
func treeQuery(tx *gorm.DB, rootPath string) *gorm.DB {
	if !utils.IsFolderPath(rootPath) {
		return tx.Where("root_path = ?", rootPath)
	}
	return tx.Where("substr(root_path, 1, ?) = ?", utf8.RuneCountInString(rootPath), rootPath)
}

func toResources(mods []db.Resource) []*types.Resource {
	result := make([]*types.Resource, 0, len(mods))
	for i := range mods {
		result = append(result, mods[i].Resource())
	}
	return result
}
