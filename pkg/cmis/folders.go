package cmis

import (
	"context"
	"fmt"
	"strconv"

	cmiserr "drccmis/pkg/errors"
)

// GetFolder fetches a folder by object id.
func (c *Client) GetFolder(ctx context.Context, objectID string) (*Folder, error) {
	obj, err := c.binding.GetObject(ctx, objectID)
	if err != nil {
		if cmiserr.IsObjectNotFound(err) {
			return nil, cmiserr.Wrap(cmiserr.ErrFolderNotFound, err, "folder %s does not exist", objectID)
		}
		return nil, fmt.Errorf("get folder %s: %w", objectID, err)
	}
	return &Folder{Object: obj}, nil
}

// RootFolder returns the repository root folder.
func (c *Client) RootFolder(ctx context.Context) (*Folder, error) {
	rootID, err := c.RootFolderID(ctx)
	if err != nil {
		return nil, err
	}
	return c.GetFolder(ctx, rootID)
}

// ChildFolders lists the folders directly inside parent. With a child type set
// only folders of that type are listed.
func (c *Client) ChildFolders(ctx context.Context, parent *Folder, childType string) ([]*Folder, error) {
	table := "cmis:folder"
	if childType != "" {
		table = StripTypePrefix(childType)
	}

	result, err := c.binding.Query(ctx, InFolder(table, parent.ID()), Paging{})
	if err != nil {
		return nil, fmt.Errorf("list folders in %s: %w", parent.ID(), err)
	}
	folders := make([]*Folder, 0, len(result.Objects))
	for _, obj := range result.Objects {
		folders = append(folders, &Folder{Object: obj})
	}
	return folders, nil
}

// GetOrCreateFolder returns the child folder called name, creating it with props
// when it does not exist yet. Two concurrent callers may both create it; the
// client does not serialize folder creation.
func (c *Client) GetOrCreateFolder(ctx context.Context, name string, parent *Folder, props Properties) (*Folder, error) {
	children, err := c.ChildFolders(ctx, parent, props.String(PropObjectTypeID))
	if err != nil {
		return nil, err
	}
	for _, folder := range children {
		if folder.Name() == name {
			return folder, nil
		}
	}
	return c.CreateFolder(ctx, name, parent.ID(), props)
}

// GetFolderByName returns the child folder called name, or ErrFolderNotFound.
func (c *Client) GetFolderByName(ctx context.Context, name string, parent *Folder) (*Folder, error) {
	children, err := c.ChildFolders(ctx, parent, "")
	if err != nil {
		return nil, err
	}
	for _, folder := range children {
		if folder.Name() == name {
			return folder, nil
		}
	}
	return nil, cmiserr.Errorf(cmiserr.ErrFolderNotFound, "folder %s does not exist in %s", name, parent.Name())
}

// CreateFolder creates a folder. props may set a custom cmis:objectTypeId and
// the properties of that type.
func (c *Client) CreateFolder(ctx context.Context, name, parentID string, props Properties) (*Folder, error) {
	all := props.Clone()
	all[PropName] = Property{Type: TypeString, Value: name}
	if !all.Has(PropObjectTypeID) {
		all[PropObjectTypeID] = Property{Type: TypeID, Value: "cmis:folder"}
	}

	c.log.WithContext(ctx).Debugf("create folder %q in %s", name, parentID)
	obj, err := c.binding.CreateFolder(ctx, parentID, all)
	if err != nil {
		return nil, fmt.Errorf("create folder %s: %w", name, err)
	}
	return &Folder{Object: obj}, nil
}

// DeleteTree removes a folder and everything in it.
func (c *Client) DeleteTree(ctx context.Context, folder *Folder) error {
	c.log.WithContext(ctx).Debugf("delete tree %s", folder.ID())
	if err := c.binding.DeleteTree(ctx, folder.ID()); err != nil {
		return fmt.Errorf("delete tree %s: %w", folder.ID(), err)
	}
	return nil
}

// BaseFolder returns the configured base folder below the root folder, creating
// it when missing. Without a base folder name it returns the root folder.
func (c *Client) BaseFolder(ctx context.Context) (*Folder, error) {
	root, err := c.RootFolder(ctx)
	if err != nil {
		return nil, err
	}
	if c.baseFolderName == "" {
		return root, nil
	}
	return c.GetOrCreateFolder(ctx, c.baseFolderName, root, nil)
}

type pathValue struct {
	name  string
	props Properties
}

func (c *Client) dateValues() map[string]pathValue {
	now := c.now().In(c.loc)
	return map[string]pathValue{
		YearElement:  {name: strconv.Itoa(now.Year())},
		MonthElement: {name: strconv.Itoa(int(now.Month()))},
		DayElement:   {name: strconv.Itoa(now.Day())},
	}
}

func (c *Client) walkPath(ctx context.Context, elements []PathElement, values map[string]pathValue) (*Folder, error) {
	folder, err := c.RootFolder(ctx)
	if err != nil {
		return nil, err
	}
	for _, pe := range elements {
		value, ok := values[pe.FolderName]
		if !ok {
			value = pathValue{name: pe.FolderName}
		}
		props := value.props
		if pe.ObjectType != "" {
			props = props.Clone()
			props[PropObjectTypeID] = Property{Type: TypeID, Value: pe.ObjectType}
		}
		folder, err = c.GetOrCreateFolder(ctx, value.name, folder, props)
		if err != nil {
			return nil, err
		}
	}
	return folder, nil
}

// GetOrCreateOtherFolder walks the folder path of documents that are not
// related to a zaak and returns its last folder.
func (c *Client) GetOrCreateOtherFolder(ctx context.Context) (*Folder, error) {
	return c.walkPath(ctx, c.otherPath, c.dateValues())
}

// GetOrCreateZaakFolder walks the zaak folder path for the given zaak and
// returns its last folder. The zaaktype and zaak folders carry their
// properties.
func (c *Client) GetOrCreateZaakFolder(ctx context.Context, zaaktype ZaakType, zaak Zaak) (*Folder, error) {
	zaaktypeProps, err := c.folderProperties(ctx, ObjectZaakTypeFolder, zaaktype.data())
	if err != nil {
		return nil, err
	}
	zaakProps, err := c.folderProperties(ctx, ObjectZaakFolder, zaak.data())
	if err != nil {
		return nil, err
	}

	values := c.dateValues()
	values[ZaakTypeElement] = pathValue{
		name:  fmt.Sprintf("zaaktype-%s-%s", zaaktype.Omschrijving, zaaktype.Identificatie),
		props: zaaktypeProps,
	}
	values[ZaakElement] = pathValue{
		name:  fmt.Sprintf("zaak-%s", zaak.Identificatie),
		props: zaakProps,
	}
	return c.walkPath(ctx, c.zaakPath, values)
}

func (c *Client) folderProperties(ctx context.Context, t ObjectType, data Data) (Properties, error) {
	props, err := c.codec.Properties(t, data, false)
	if err != nil {
		return nil, err
	}
	typeID, err := c.objectTypeID(ctx, t)
	if err != nil {
		return nil, err
	}
	props[PropObjectTypeID] = typeID
	return props, nil
}

// ZaakFolderByURL looks up the folder of a zaak.
func (c *Client) ZaakFolderByURL(ctx context.Context, zaakURL string) (*ZaakFolder, error) {
	f, err := c.filter(ObjectZaak, "url", zaakURL)
	if err != nil {
		return nil, err
	}
	objects, err := c.Query(ctx, ObjectZaakFolder, f)
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, cmiserr.Errorf(cmiserr.ErrFolderNotFound, "no folder for zaak %s", zaakURL)
	}
	return c.codec.ZaakFolder(objects[0]), nil
}

// DeleteFoldersInBase removes the base folders of the zaak and the other folder
// paths with all their content. Missing folders are skipped.
func (c *Client) DeleteFoldersInBase(ctx context.Context) error {
	root, err := c.RootFolder(ctx)
	if err != nil {
		return err
	}

	names := []string{BaseFolderName(c.zaakPathRaw)}
	if other := BaseFolderName(c.otherPathRaw); other != names[0] {
		names = append(names, other)
	}
	for _, name := range names {
		folder, err := c.GetFolderByName(ctx, name, root)
		if err != nil {
			if cmiserr.IsNotFound(err) {
				continue
			}
			return err
		}
		if err := c.DeleteTree(ctx, folder); err != nil {
			return err
		}
	}
	return nil
}
