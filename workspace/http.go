package workspace

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	auth "github.com/goliatone/go-phone-auth"
)

type ControllerRoutes struct {
	Composite      string
	CompositeClose string
	Task           string
	TaskClose      string
}

type Controller struct {
	Service *Service
	Routes  *ControllerRoutes
}

// NewController creates a controller with the default routes
func NewController(service *Service) *Controller {
	if service == nil {
		panic("Missing Service in workspace controller...")
	}
	return &Controller{
		Service: service,
		Routes: &ControllerRoutes{
			Composite:      "/composite",
			CompositeClose: "/composite/close",
			Task:           "/task",
			TaskClose:      "/task/close",
		},
	}
}

// RegisterRoutes mounts composite and task routes behind protected
func RegisterRoutes(app fiber.Router, controller *Controller, protected fiber.Handler) {
	r := controller.Routes

	app.Post(r.Composite, protected, controller.CompositeCreate).Name("composite.post")
	app.Get(r.Composite, protected, controller.CompositeGet).Name("composite.get")
	app.Patch(r.Composite, protected, controller.CompositePatch).Name("composite.patch")
	app.Delete(r.Composite, protected, controller.CompositeDelete).Name("composite.delete")
	app.Post(r.CompositeClose, protected, controller.CompositeClose).Name("composite-close.post")

	app.Post(r.Task, protected, controller.TaskCreate).Name("task.post")
	app.Get(r.Task, protected, controller.TaskGet).Name("task.get")
	app.Patch(r.Task, protected, controller.TaskPatch).Name("task.patch")
	app.Delete(r.Task, protected, controller.TaskDelete).Name("task.delete")
	app.Post(r.TaskClose, protected, controller.TaskClose).Name("task-close.post")
}

func (w *Controller) CompositeCreate(c *fiber.Ctx) error {
	actor, ok := auth.CurrentUser(c)
	if !ok {
		return auth.ErrUnauthenticated
	}

	var msg CreateCompositeMessage
	if err := c.BodyParser(&msg); err != nil {
		return badBody(err)
	}

	composite, err := w.Service.CreateComposite(c.UserContext(), actor, msg)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(composite)
}

// CompositeGet returns one composite when composite_id is set, otherwise
// the composites of user_id or of the current user
func (w *Controller) CompositeGet(c *fiber.Ctx) error {
	actor, ok := auth.CurrentUser(c)
	if !ok {
		return auth.ErrUnauthenticated
	}

	id, found, err := queryUUID(c, "composite_id")
	if err != nil {
		return err
	}
	if found {
		composite, err := w.Service.GetComposite(c.UserContext(), actor, id)
		if err != nil {
			return err
		}
		return c.JSON(composite)
	}

	ownerID, _, err := queryUUID(c, "user_id")
	if err != nil {
		return err
	}
	composites, err := w.Service.ListComposites(c.UserContext(), actor, ownerID)
	if err != nil {
		return err
	}
	return c.JSON(composites)
}

func (w *Controller) CompositePatch(c *fiber.Ctx) error {
	actor, ok := auth.CurrentUser(c)
	if !ok {
		return auth.ErrUnauthenticated
	}

	id, err := requireUUID(c, "composite_id")
	if err != nil {
		return err
	}

	var patch CompositePatch
	if err := c.BodyParser(&patch); err != nil {
		return badBody(err)
	}

	composite, err := w.Service.UpdateComposite(c.UserContext(), actor, id, patch)
	if err != nil {
		return err
	}
	return c.JSON(composite)
}

func (w *Controller) CompositeDelete(c *fiber.Ctx) error {
	actor, ok := auth.CurrentUser(c)
	if !ok {
		return auth.ErrUnauthenticated
	}

	id, err := requireUUID(c, "composite_id")
	if err != nil {
		return err
	}

	if err := w.Service.DeleteComposite(c.UserContext(), actor, id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"composite_id": id})
}

func (w *Controller) CompositeClose(c *fiber.Ctx) error {
	actor, ok := auth.CurrentUser(c)
	if !ok {
		return auth.ErrUnauthenticated
	}

	id, err := requireUUID(c, "composite_id")
	if err != nil {
		return err
	}

	composite, err := w.Service.CloseComposite(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(composite)
}

func (w *Controller) TaskCreate(c *fiber.Ctx) error {
	actor, ok := auth.CurrentUser(c)
	if !ok {
		return auth.ErrUnauthenticated
	}

	var msg CreateTaskMessage
	if err := c.BodyParser(&msg); err != nil {
		return badBody(err)
	}

	task, err := w.Service.CreateTask(c.UserContext(), actor, msg)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(task)
}

// TaskGet returns one task when task_id is set, otherwise the tasks of
// composite_id or of the current user
func (w *Controller) TaskGet(c *fiber.Ctx) error {
	actor, ok := auth.CurrentUser(c)
	if !ok {
		return auth.ErrUnauthenticated
	}

	id, found, err := queryUUID(c, "task_id")
	if err != nil {
		return err
	}
	if found {
		task, err := w.Service.GetTask(c.UserContext(), actor, id)
		if err != nil {
			return err
		}
		return c.JSON(task)
	}

	var filter TaskFilter
	compositeID, found, err := queryUUID(c, "composite_id")
	if err != nil {
		return err
	}
	if found {
		filter.CompositeID = &compositeID
	}
	if filter.OwnerID, _, err = queryUUID(c, "user_id"); err != nil {
		return err
	}

	tasks, err := w.Service.ListTasks(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	return c.JSON(tasks)
}

func (w *Controller) TaskPatch(c *fiber.Ctx) error {
	actor, ok := auth.CurrentUser(c)
	if !ok {
		return auth.ErrUnauthenticated
	}

	id, err := requireUUID(c, "task_id")
	if err != nil {
		return err
	}

	var patch TaskPatch
	if err := c.BodyParser(&patch); err != nil {
		return badBody(err)
	}

	task, err := w.Service.UpdateTask(c.UserContext(), actor, id, patch)
	if err != nil {
		return err
	}
	return c.JSON(task)
}

func (w *Controller) TaskDelete(c *fiber.Ctx) error {
	actor, ok := auth.CurrentUser(c)
	if !ok {
		return auth.ErrUnauthenticated
	}

	id, err := requireUUID(c, "task_id")
	if err != nil {
		return err
	}

	if err := w.Service.DeleteTask(c.UserContext(), actor, id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"task_id": id})
}

func (w *Controller) TaskClose(c *fiber.Ctx) error {
	actor, ok := auth.CurrentUser(c)
	if !ok {
		return auth.ErrUnauthenticated
	}

	id, err := requireUUID(c, "task_id")
	if err != nil {
		return err
	}

	task, err := w.Service.CloseTask(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(task)
}

func queryUUID(c *fiber.Ctx, key string) (uuid.UUID, bool, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return uuid.Nil, false, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false, auth.ErrUnprocessableInput.Clone().
			WithMetadata(map[string]any{key: "must be a valid uuid"})
	}
	return id, true, nil
}

func requireUUID(c *fiber.Ctx, key string) (uuid.UUID, error) {
	id, found, err := queryUUID(c, key)
	if err != nil {
		return uuid.Nil, err
	}
	if !found {
		return uuid.Nil, auth.ErrUnprocessableInput.Clone().
			WithMetadata(map[string]any{key: "is required"})
	}
	return id, nil
}

func badBody(err error) error {
	return auth.ErrUnprocessableInput.Clone().WithMetadata(map[string]any{"body": err.Error()})
}
