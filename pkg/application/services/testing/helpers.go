package testing

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vsinha/freshplan/pkg/application/dto"
	"github.com/vsinha/freshplan/pkg/domain/entities"
	"github.com/vsinha/freshplan/pkg/infrastructure/repositories/memory"
)

// Monday is the first day of every fixture horizon
var Monday = entities.NewDate(2025, time.January, 6)

// MustNode is a helper for tests - panics on validation error
func MustNode(id entities.NodeID, role entities.NodeRole, frozen, ambient bool, rate float64) *entities.Node {
	n, err := entities.NewNode(id, string(id), role, frozen, ambient, rate)
	if err != nil {
		panic(err)
	}
	return n
}

// MustLeg is a helper for tests - panics on validation error
func MustLeg(id entities.LegID, origin, dest entities.NodeID, transit int, mode entities.TransportMode, capacity, cost float64) *entities.Leg {
	l, err := entities.NewLeg(id, origin, dest, transit, mode, capacity, cost)
	if err != nil {
		panic(err)
	}
	return l
}

// MustProduct is a helper for tests - panics on validation error
func MustProduct(id entities.ProductID, ambient, frozen, thawed, minRemaining int) *entities.Product {
	p, err := entities.NewProduct(id, string(id), ambient, frozen, thawed, minRemaining)
	if err != nil {
		panic(err)
	}
	return p
}

// MustFixedDay is a helper for tests - a fixed shift with overtime
func MustFixedDay(d entities.Date, fixedHours, overtime float64) *entities.LaborDay {
	l, err := entities.NewLaborDay(d, true, fixedHours, overtime, 0, 0, 20, 30, 0)
	if err != nil {
		panic(err)
	}
	return l
}

// MustTruck is a helper for tests - panics on validation error
func MustTruck(id entities.TruckID, origin entities.NodeID, dests []entities.NodeID, day *time.Weekday, fixedCost float64) *entities.TruckSchedule {
	t, err := entities.NewTruckSchedule(id, origin, dests, day, 0, 0, fixedCost)
	if err != nil {
		panic(err)
	}
	return t
}

// Fixture is a loaded planning scenario
type Fixture struct {
	Network   *entities.Network
	Nodes     []*entities.Node
	Legs      []*entities.Leg
	Trucks    []*entities.TruckSchedule
	Products  []*entities.Product
	Costs     *entities.CostStructure
	LaborDays []*entities.LaborDay
	Labor     *memory.LaborRepository
	Demand    *memory.DemandRepository
	Inventory *memory.InventoryRepository
	Config    entities.RunConfig
}

func newFixture(nodes []*entities.Node, legs []*entities.Leg, trucks []*entities.TruckSchedule, products []*entities.Product, days int) *Fixture {
	net, err := entities.NewNetwork(nodes, legs, trucks)
	if err != nil {
		panic(err)
	}
	costs := entities.DefaultCostStructure()
	costs.ProductionCostPerUnit = decimal.NewFromInt(1)
	costs.ShortagePenaltyPerUnit = decimal.NewFromInt(10)

	cfg := entities.DefaultRunConfig(Monday, Monday.AddDays(days-1))
	cfg.WindowDays = days
	cfg.OverlapDays = 0
	cfg.TimeLimit = 30 * time.Second
	cfg.RelativeGap = 0

	return &Fixture{
		Network:   net,
		Nodes:     nodes,
		Legs:      legs,
		Trucks:    trucks,
		Products:  products,
		Costs:     costs,
		Labor:     memory.NewLaborRepository(),
		Demand:    memory.NewDemandRepository(),
		Inventory: memory.NewInventoryRepository(),
		Config:    cfg,
	}
}

// AddDemand adds forecast demand dated offset days after Monday
func (f *Fixture) AddDemand(node entities.NodeID, product entities.ProductID, offset int, qty float64) {
	rec := &entities.DemandRecord{Node: node, Product: product, Date: Monday.AddDays(offset), Quantity: qty}
	if err := f.Demand.LoadDemand([]*entities.DemandRecord{rec}); err != nil {
		panic(err)
	}
}

// AddStock adds ambient opening stock produced offset days after Monday
func (f *Fixture) AddStock(node entities.NodeID, product entities.ProductID, prodOffset int, qty float64) {
	rec := &entities.InventoryRecord{
		Node: node, Product: product, ProdDate: Monday.AddDays(prodOffset),
		State: entities.Ambient, ThawDate: entities.NoDate, Quantity: qty,
	}
	if err := f.Inventory.LoadInventory([]*entities.InventoryRecord{rec}); err != nil {
		panic(err)
	}
}

// AddLabor adds fixed shifts on the given day offsets
func (f *Fixture) AddLabor(fixedHours, overtime float64, offsets ...int) {
	var days []*entities.LaborDay
	for _, o := range offsets {
		days = append(days, MustFixedDay(Monday.AddDays(o), fixedHours, overtime))
	}
	if err := f.Labor.LoadLaborDays(days); err != nil {
		panic(err)
	}
	f.LaborDays = append(f.LaborDays, days...)
}

// Horizon returns the configured planning horizon
func (f *Fixture) Horizon() entities.DateRange {
	return f.Config.Horizon()
}

// Opening returns the stock on hand at the end of the day before the horizon
func (f *Fixture) Opening() *entities.Snapshot {
	return f.Inventory.Snapshot(Monday.AddDays(-1))
}

// Context converts the fixture into planner input
func (f *Fixture) Context() *dto.PlanningContext {
	demand, _ := f.Demand.GetAllDemand()
	stock, _ := f.Inventory.GetInitialInventory()
	transit, _ := f.Inventory.GetInTransit()

	pc := &dto.PlanningContext{
		Nodes:    f.Nodes,
		Legs:     f.Legs,
		Trucks:   f.Trucks,
		Products: f.Products,
		Labor:    f.LaborDays,
		Costs:    f.Costs,
		Demand:   demand,
		Config:   f.Config,
	}
	for i := range stock {
		pc.Inventory = append(pc.Inventory, &stock[i])
	}
	for i := range transit {
		pc.InTransit = append(pc.InTransit, &transit[i])
	}
	return pc
}

// BuildSpokeStock is a single spoke with opening stock and no production: 518 units
// produced the day before the horizon, shelf life 10, and no demand yet
func BuildSpokeStock(days int) *Fixture {
	f := newFixture(
		[]*entities.Node{
			MustNode("MFG", entities.Manufacturing, false, true, 100),
			MustNode("SPOKE", entities.Spoke, false, true, 0),
		},
		[]*entities.Leg{MustLeg("MFG-SPOKE", "MFG", "SPOKE", 1, entities.AmbientTransport, 0, 1)},
		nil,
		[]*entities.Product{MustProduct("BREAD", 10, 60, 10, 0)},
		days,
	)
	f.AddStock("SPOKE", "BREAD", -1, 518)
	return f
}

// BuildThreeEchelon is a plant feeding a frozen hub by a Monday truck, and an ambient spoke
// behind the hub whose frozen leg thaws goods on arrival
func BuildThreeEchelon(days int) *Fixture {
	monday := time.Monday
	f := newFixture(
		[]*entities.Node{
			MustNode("MFG", entities.Manufacturing, false, true, 100),
			MustNode("HUB", entities.Hub, true, true, 0),
			MustNode("SPOKE", entities.Spoke, false, true, 0),
		},
		[]*entities.Leg{
			MustLeg("MFG-HUB", "MFG", "HUB", 1, entities.FrozenTransport, 0, 0.5),
			MustLeg("HUB-SPOKE", "HUB", "SPOKE", 1, entities.FrozenTransport, 0, 0.25),
		},
		[]*entities.TruckSchedule{
			MustTruck("T-MON", "MFG", []entities.NodeID{"HUB"}, &monday, 100),
		},
		[]*entities.Product{MustProduct("BREAD", 5, 60, 4, 0)},
		days,
	)
	return f
}

// BuildDirect is a plant shipping ambient goods straight to one spoke with daily production
func BuildDirect(days, shelfLife int) *Fixture {
	f := newFixture(
		[]*entities.Node{
			MustNode("MFG", entities.Manufacturing, false, true, 100),
			MustNode("SPOKE", entities.Spoke, false, true, 0),
		},
		[]*entities.Leg{MustLeg("MFG-SPOKE", "MFG", "SPOKE", 1, entities.AmbientTransport, 0, 0.5)},
		nil,
		[]*entities.Product{MustProduct("BREAD", shelfLife, 60, shelfLife, 0)},
		days,
	)
	return f
}
